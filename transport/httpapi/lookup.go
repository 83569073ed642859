package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) endpointLookup(c echo.Context) error {
	mbs, err := s.engine.Lookup(c.Request().Context(), c.Param("ods"), c.Param("workflow"))
	if err != nil {
		return err
	}
	v := apiVersion(c)
	return writeJSON(c, http.StatusOK, v, endpointLookup(mbs, v))
}

// workflowSearch always answers in the version 2 shape.
func (s *Server) workflowSearch(c echo.Context) error {
	mbs, err := s.engine.LookupWorkflow(c.Request().Context(), c.Param("workflow"))
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, apiVersion(c), mailboxLookup(mbs))
}
