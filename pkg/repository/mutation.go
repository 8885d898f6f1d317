package repository

import (
	"encoding/json"

	"github.com/cuemby/graphrag/pkg/rerr"
	"github.com/cuemby/graphrag/pkg/types"
)

// opKind tags a Mutation the way cuemby-warren's raft FSM tags a Command by
// its Op string (pkg/manager/fsm.go), so a single WAL record can carry a
// heterogeneous, ordered batch of mutations.
type opKind string

const (
	opPutNode    opKind = "put_node"
	opPutEdge    opKind = "put_edge"
	opDeleteNode opKind = "delete_node"
)

// Mutation is one of PutNode, PutEdge, or DeleteNode — the only operations
// apply_index_transaction accepts (spec §4.4).
type Mutation interface {
	opKind() opKind
}

// PutNode upserts a node by id.
type PutNode struct {
	Node types.Node
}

func (PutNode) opKind() opKind { return opPutNode }

// PutEdge upserts an edge by its (source, target, relation) logical key.
type PutEdge struct {
	Edge types.Edge
}

func (PutEdge) opKind() opKind { return opPutEdge }

// DeleteNode removes a node and its incident edges.
type DeleteNode struct {
	ID uint64
}

func (DeleteNode) opKind() opKind { return opDeleteNode }

type opRecord struct {
	Op   opKind          `json:"op"`
	Data json.RawMessage `json:"data"`
}

type txRecord struct {
	Ops []opRecord `json:"ops"`
}

// encodeTransaction serializes an ordered mutation batch into the single
// WAL record the transaction protocol appends (spec §4.4 step 2).
func encodeTransaction(muts []Mutation) ([]byte, error) {
	rec := txRecord{Ops: make([]opRecord, 0, len(muts))}
	for _, m := range muts {
		var data []byte
		var err error
		switch v := m.(type) {
		case PutNode:
			data, err = json.Marshal(v.Node)
		case PutEdge:
			data, err = json.Marshal(v.Edge)
		case DeleteNode:
			data, err = json.Marshal(v.ID)
		default:
			return nil, rerr.Newf(rerr.Internal, "repository.encodeTransaction", "unknown mutation type %T", m)
		}
		if err != nil {
			return nil, rerr.Wrap(err, rerr.Storage, "repository.encodeTransaction")
		}
		rec.Ops = append(rec.Ops, opRecord{Op: m.opKind(), Data: data})
	}
	return json.Marshal(rec)
}

// decodeTransaction reverses encodeTransaction.
func decodeTransaction(raw []byte) ([]Mutation, error) {
	var rec txRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, rerr.Wrap(err, rerr.Storage, "repository.decodeTransaction")
	}
	muts := make([]Mutation, 0, len(rec.Ops))
	for _, op := range rec.Ops {
		switch op.Op {
		case opPutNode:
			var n types.Node
			if err := json.Unmarshal(op.Data, &n); err != nil {
				return nil, rerr.Wrap(err, rerr.Storage, "repository.decodeTransaction")
			}
			muts = append(muts, PutNode{Node: n})
		case opPutEdge:
			var e types.Edge
			if err := json.Unmarshal(op.Data, &e); err != nil {
				return nil, rerr.Wrap(err, rerr.Storage, "repository.decodeTransaction")
			}
			muts = append(muts, PutEdge{Edge: e})
		case opDeleteNode:
			var id uint64
			if err := json.Unmarshal(op.Data, &id); err != nil {
				return nil, rerr.Wrap(err, rerr.Storage, "repository.decodeTransaction")
			}
			muts = append(muts, DeleteNode{ID: id})
		default:
			return nil, rerr.Newf(rerr.Storage, "repository.decodeTransaction", "unknown op %q", op.Op)
		}
	}
	return muts, nil
}
