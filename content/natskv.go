package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Bucket names per record kind.
var buckets = map[Kind]string{
	KindProposal: "AGORA_PROPOSALS",
	KindVote:     "AGORA_VOTES",
	KindComment:  "AGORA_COMMENTS",
	KindJournal:  "AGORA_JOURNAL",
}

// NATS is a Store over one JetStream KV bucket per record kind.
type NATS struct {
	kv map[Kind]jetstream.KeyValue
}

// NewNATS creates the buckets if needed and returns a Store.
func NewNATS(ctx context.Context, js jetstream.JetStream) (*NATS, error) {
	stores := make(map[Kind]jetstream.KeyValue, len(buckets))
	for kind, bucket := range buckets {
		kv, err := js.KeyValue(ctx, bucket)
		if err != nil {
			kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
				Bucket:      bucket,
				Description: fmt.Sprintf("agora %s records", kind),
			})
			if err != nil {
				return nil, fmt.Errorf("create %s bucket: %w", kind, err)
			}
		}
		stores[kind] = kv
	}
	return &NATS{kv: stores}, nil
}

func (n *NATS) Put(ctx context.Context, rec *Record) error {
	kv, ok := n.kv[rec.Kind]
	if !ok {
		return fmt.Errorf("unknown record kind %q", rec.Kind)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", rec.Kind, err)
	}
	if _, err := kv.Create(ctx, rec.ID, data); err != nil {
		return fmt.Errorf("store %s: %w", rec.Kind, err)
	}
	return nil
}

func (n *NATS) Get(ctx context.Context, kind Kind, id string) (*Record, error) {
	kv, ok := n.kv[kind]
	if !ok {
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
	entry, err := kv.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}
	var rec Record
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", kind, err)
	}
	return &rec, nil
}

func (n *NATS) List(ctx context.Context, kind Kind) ([]*Record, error) {
	kv, ok := n.kv[kind]
	if !ok {
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
	keys, err := kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s keys: %w", kind, err)
	}
	records := make([]*Record, 0, len(keys))
	for _, key := range keys {
		rec, err := n.Get(ctx, kind, key)
		if err != nil {
			continue // skip entries that fail to load
		}
		records = append(records, rec)
	}
	return records, nil
}
