package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgallion1/docchunk/internal/pathstore"
)

// Pathstore writes records as nodes under
// <root>/documents/<doc_id>/chunks/<index>, with a meta node per document,
// a by_hash index for dedup, and a link from each chunk to the next.
type Pathstore struct {
	client *pathstore.Client
	root   string
}

func NewPathstore(baseURL, apiKey, root string) *Pathstore {
	if root == "" {
		root = "docchunk"
	}
	return &Pathstore{
		client: pathstore.NewClient(baseURL, apiKey),
		root:   strings.Trim(root, "/"),
	}
}

func (p *Pathstore) docPrefix(docID string) string {
	return fmt.Sprintf("%s/documents/%s", p.root, docID)
}

func (p *Pathstore) chunkKey(docID string, index int) string {
	return fmt.Sprintf("%s/chunks/%05d", p.docPrefix(docID), index)
}

func (p *Pathstore) hashKey(hash, docID string) string {
	return fmt.Sprintf("%s/by_hash/%s/%s", p.root, hash, docID)
}

func (p *Pathstore) Save(ctx context.Context, rec Record) error {
	key := p.chunkKey(rec.DocID, rec.ChunkIndex)
	err := p.client.PutNode(ctx, key, pathstore.NodeRequest{
		Value:      rec,
		MemoryType: "semantic",
		Salience:   0.5,
		Source:     "docchunk:" + rec.DocID,
	})
	if err != nil {
		return err
	}
	if rec.ChunkIndex == 0 {
		return nil
	}
	return p.client.PutLink(ctx, pathstore.LinkRequest{
		From:    p.chunkKey(rec.DocID, rec.ChunkIndex-1),
		To:      key,
		Weight:  1,
		Summary: "next",
	})
}

func (p *Pathstore) SaveDocument(ctx context.Context, meta DocumentMeta) error {
	source := "docchunk:" + meta.DocID
	if err := p.client.PutNode(ctx, p.docPrefix(meta.DocID)+"/meta", pathstore.NodeRequest{
		Value:      meta,
		MemoryType: "metacognitive",
		Salience:   0.5,
		Source:     source,
	}); err != nil {
		return err
	}
	return p.client.PutNode(ctx, p.hashKey(meta.ContentHash, meta.DocID), pathstore.NodeRequest{
		Value:      map[string]any{"source_file": meta.Source},
		MemoryType: "metacognitive",
		Salience:   0.1,
		Source:     source,
	})
}

func (p *Pathstore) FindByHash(ctx context.Context, contentHash string) (string, bool, error) {
	children, err := p.client.ListChildren(ctx, fmt.Sprintf("%s/by_hash/%s", p.root, contentHash), 1)
	if err != nil {
		return "", false, err
	}
	if len(children) == 0 {
		return "", false, nil
	}
	return lastSegment(children[0].Key), true, nil
}

func (p *Pathstore) ListDocuments(ctx context.Context) ([]DocumentMeta, error) {
	children, err := p.client.ListChildren(ctx, p.root+"/documents", 10000)
	if err != nil {
		return nil, err
	}
	docs := []DocumentMeta{}
	for _, child := range children {
		if lastSegment(child.Key) != "meta" {
			continue
		}
		var meta DocumentMeta
		if err := json.Unmarshal(child.Value, &meta); err != nil {
			return nil, fmt.Errorf("decode %s: %w", child.Key, err)
		}
		docs = append(docs, meta)
	}
	return docs, nil
}

// DeleteDocument removes the document subtree and its hash index entry. The
// returned count comes from the stored meta.
func (p *Pathstore) DeleteDocument(ctx context.Context, docID string) (int, error) {
	var meta DocumentMeta
	node, err := p.client.GetNode(ctx, p.docPrefix(docID)+"/meta")
	if err != nil {
		return 0, err
	}
	if node != nil {
		if err := json.Unmarshal(node.Value, &meta); err != nil {
			return 0, fmt.Errorf("decode meta: %w", err)
		}
	}

	if err := p.client.DeleteNode(ctx, p.docPrefix(docID), true); err != nil {
		return 0, err
	}
	if meta.ContentHash != "" {
		if err := p.client.DeleteNode(ctx, p.hashKey(meta.ContentHash, docID), false); err != nil {
			return meta.TotalChunks, fmt.Errorf("delete hash index: %w", err)
		}
	}
	return meta.TotalChunks, nil
}

func (p *Pathstore) Close() error {
	p.client.Close()
	return nil
}

// lastSegment handles both dotted and slashed key paths.
func lastSegment(key string) string {
	if i := strings.LastIndexAny(key, "./"); i >= 0 {
		return key[i+1:]
	}
	return key
}
