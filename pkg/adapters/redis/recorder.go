package redis

import (
	"context"
	"encoding/json"
	"fmt"

	backend "github.com/redis/go-redis/v9"

	"github.com/dialflow/dialflow/pkg/flow"
)

// Recorder implements ports.CallRecorder by appending finished call records
// to a Redis list, where a downstream consumer drains them into the CRM.
type Recorder struct {
	client *backend.Client
	key    string
}

// NewRecorder creates a call recorder writing to the given list key.
func NewRecorder(client *backend.Client, key string) *Recorder {
	if key == "" {
		key = "dialflow:call_records"
	}
	return &Recorder{client: client, key: key}
}

// Record appends the record as JSON.
func (r *Recorder) Record(ctx context.Context, rec flow.CallRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal call record: %w", err)
	}
	if err := r.client.RPush(ctx, r.key, data).Err(); err != nil {
		return fmt.Errorf("failed to push call record: %w", err)
	}
	return nil
}
