package badger

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/storage"
)

// GraphStore implements storage.GraphStore for BadgerDB.
//
// Nodes are global and keyed by their content-derived ID; each keeps one
// provenance entry per contributing document, indexed under ndoc:. Edges
// belong to the document that produced them.
type GraphStore struct {
	backend *Backend
}

var _ storage.GraphStore = (*GraphStore)(nil)

// NewGraphStore creates a new GraphStore.
func NewGraphStore(backend *Backend) (*GraphStore, error) {
	return &GraphStore{
		backend: backend,
	}, nil
}

// WriteNodes upserts nodes, merging provenance into existing ones.
func (g *GraphStore) WriteNodes(ctx context.Context, nodes []*core.GraphNode) error {
	for _, n := range nodes {
		if err := core.ValidateNode(n); err != nil {
			return fmt.Errorf("%w: %w", core.ErrPermanent, err)
		}
	}
	return g.backend.update(func(tx *badger.Txn) error {
		for _, n := range nodes {
			merged, err := readNode(tx, n.Id)
			if err != nil {
				return err
			}
			if merged == nil {
				copied := *n
				merged = &copied
			} else {
				mergeNode(merged, n)
			}
			if err := tx.Set(makeNodeKey(merged.Id), storage.MarshalGraphNode(merged)); err != nil {
				return err
			}
			for _, p := range n.Provenance {
				if err := tx.Set(makeNodeDocKey(p.DocumentId, n.Id), nil); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// WriteEdges stores edges whose endpoints already exist. One edge with a
// missing endpoint rejects the whole batch.
func (g *GraphStore) WriteEdges(ctx context.Context, edges []*core.GraphEdge) error {
	for _, e := range edges {
		if err := core.ValidateEdge(e); err != nil {
			return fmt.Errorf("%w: %w", core.ErrPermanent, err)
		}
	}
	return g.backend.update(func(tx *badger.Txn) error {
		for _, e := range edges {
			for _, endpoint := range []core.ID{e.Source, e.Target} {
				node, err := readNode(tx, endpoint)
				if err != nil {
					return err
				}
				if node == nil {
					return fmt.Errorf("%w: %w: edge %d references missing node %d", core.ErrPermanent, core.ErrInvalidEdge, e.Id, endpoint)
				}
			}
			if err := tx.Set(makeEdgeKey(e.Provenance.DocumentId, e.Id), storage.MarshalGraphEdge(e)); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteByDocument removes every trace of the document from the graph.
// Shared nodes attributed to the document are reattributed to their
// earliest remaining source.
func (g *GraphStore) DeleteByDocument(ctx context.Context, documentID core.ID) error {
	prefix := makePartialNodeDocKey(documentID)
	return g.backend.update(func(tx *badger.Txn) error {
		if err := deleteKeys(tx, keysWithPrefix(tx, makePartialEdgeKey(documentID))); err != nil {
			return err
		}
		for _, key := range keysWithPrefix(tx, prefix) {
			nodeID, err := parseNodeID(bytes.TrimPrefix(key, prefix))
			if err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
			node, err := readNode(tx, nodeID)
			if err != nil {
				return err
			}
			if node == nil {
				continue
			}
			kept := node.Provenance[:0]
			for _, p := range node.Provenance {
				if p.DocumentId != documentID {
					kept = append(kept, p)
				}
			}
			node.Provenance = kept
			if len(kept) == 0 {
				if err := tx.Delete(makeNodeKey(nodeID)); err != nil {
					return err
				}
				continue
			}
			if node.Properties[core.PropDocumentID] == documentID.String() {
				node.Attribute(kept[0])
			}
			if err := tx.Set(makeNodeKey(nodeID), storage.MarshalGraphNode(node)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetNode retrieves a node by ID.
func (g *GraphStore) GetNode(ctx context.Context, id core.ID) (*core.GraphNode, error) {
	var result *core.GraphNode
	err := g.backend.view(func(tx *badger.Txn) error {
		var err error
		result, err = readNode(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: node %d", core.ErrNotFound, id)
		}
		return nil
	})
	return result, err
}

// NodesByDocument returns nodes carrying provenance from the document.
func (g *GraphStore) NodesByDocument(ctx context.Context, documentID core.ID) ([]*core.GraphNode, error) {
	prefix := makePartialNodeDocKey(documentID)
	var results []*core.GraphNode
	err := g.backend.view(func(tx *badger.Txn) error {
		for _, key := range keysWithPrefix(tx, prefix) {
			nodeID, err := parseNodeID(bytes.TrimPrefix(key, prefix))
			if err != nil {
				return err
			}
			node, err := readNode(tx, nodeID)
			if err != nil {
				return err
			}
			if node != nil {
				results = append(results, node)
			}
		}
		return nil
	})
	return results, err
}

// EdgesByDocument returns the document's edges.
func (g *GraphStore) EdgesByDocument(ctx context.Context, documentID core.ID) ([]*core.GraphEdge, error) {
	var results []*core.GraphEdge
	err := g.backend.view(func(tx *badger.Txn) error {
		return scan(tx, makePartialEdgeKey(documentID), func(_, val []byte) error {
			edge, err := storage.UnmarshalGraphEdge(val)
			if err != nil {
				return err
			}
			results = append(results, edge)
			return nil
		})
	})
	return results, err
}

// mergeNode folds the provenance and any new properties of n into dst.
func mergeNode(dst, n *core.GraphNode) {
	for _, p := range n.Provenance {
		found := false
		for _, existing := range dst.Provenance {
			if existing == p {
				found = true
				break
			}
		}
		if !found {
			dst.Provenance = append(dst.Provenance, p)
		}
	}
	for k, v := range n.Properties {
		if dst.Properties == nil {
			dst.Properties = make(map[string]string, len(n.Properties))
		}
		if _, ok := dst.Properties[k]; !ok {
			dst.Properties[k] = v
		}
	}
}

func parseNodeID(b []byte) (core.ID, error) {
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed node index key %q", storage.ErrSerializationFailed, b)
	}
	return core.ID(v), nil
}

// readNode reads a node from the transaction. Returns nil, nil when missing.
func readNode(tx *badger.Txn, id core.ID) (*core.GraphNode, error) {
	val, err := get(tx, makeNodeKey(id))
	if err != nil || val == nil {
		return nil, err
	}
	return storage.UnmarshalGraphNode(val)
}
