// Package fixture loads the canned mailbox dataset.
//
// A dataset is four JSON-lines files: mailboxes.jsonl, workflows.jsonl,
// messages.jsonl and chunks.jsonl. A chunk line is
// {"message_id": "...", "chunk_no": 1, "data": "<base64>"}.
// Blank lines are skipped; a missing file yields no records of that kind.
package fixture

import (
	"bufio"
	"bytes"
	"cmp"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/rbaliyan/meshsandbox/store"
)

//go:embed data/*.jsonl
var embedded embed.FS

// Dataset file names.
const (
	MailboxesFile = "mailboxes.jsonl"
	WorkflowsFile = "workflows.jsonl"
	MessagesFile  = "messages.jsonl"
	ChunksFile    = "chunks.jsonl"
)

const maxLineSize = 16 << 20

type options struct {
	withoutMessages bool
}

// Option configures loading.
type Option func(*options)

// WithoutMessages loads only mailboxes and workflows.
func WithoutMessages() Option {
	return func(o *options) {
		o.withoutMessages = true
	}
}

// Load reads the embedded dataset.
func Load(opts ...Option) (*store.Dataset, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub, opts...)
}

// LoadDir reads a dataset from a directory.
func LoadDir(dir string, opts ...Option) (*store.Dataset, error) {
	return LoadFS(os.DirFS(dir), opts...)
}

// LoadFS reads a dataset from the root of fsys.
func LoadFS(fsys fs.FS, opts ...Option) (*store.Dataset, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	data := &store.Dataset{Chunks: make(map[string][][]byte)}

	var err error
	if data.Mailboxes, err = readLines[*store.Mailbox](fsys, MailboxesFile); err != nil {
		return nil, err
	}
	if data.Workflows, err = readLines[*store.Workflow](fsys, WorkflowsFile); err != nil {
		return nil, err
	}
	if o.withoutMessages {
		return data, nil
	}
	if data.Messages, err = readLines[*store.Message](fsys, MessagesFile); err != nil {
		return nil, err
	}

	chunks, err := readLines[*chunkLine](fsys, ChunksFile)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(chunks, func(a, b *chunkLine) int { return cmp.Compare(a.ChunkNo, b.ChunkNo) })
	for _, c := range chunks {
		id := store.NormalizeID(c.MessageID)
		data.Chunks[id] = append(data.Chunks[id], c.Data)
	}
	return data, nil
}

type chunkLine struct {
	MessageID string `json:"message_id"`
	ChunkNo   int    `json:"chunk_no"`
	Data      []byte `json:"data"`
}

func readLines[T any](fsys fs.FS, name string) ([]T, error) {
	f, err := fsys.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fixture: open %s: %w", name, err)
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("fixture: %s line %d: %w", name, line, err)
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("fixture: read %s: %w", name, err)
	}
	return out, nil
}
