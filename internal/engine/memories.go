package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rcliao/memex/internal/memexerr"
	"github.com/rcliao/memex/internal/model"
	"github.com/rcliao/memex/internal/store"
)

// SaveInput is the engine-level, fully-typed counterpart of save's wire
// parameters.
type SaveInput struct {
	UserID     string
	SessionID  string
	Content    string
	Importance float64
	TTLHours   *int
	Metadata   map[string]any
	Tags       []string
}

func validateSaveInput(in SaveInput) error {
	if in.UserID == "" {
		return memexerr.New(memexerr.Invalid, "user_id is required")
	}
	if in.SessionID == "" {
		return memexerr.New(memexerr.Invalid, "session_id is required")
	}
	if in.Content == "" {
		return memexerr.New(memexerr.Invalid, "content must not be empty")
	}
	if len(in.Content) > model.MaxContentBytes {
		return memexerr.Newf(memexerr.Invalid, "content exceeds %d bytes", model.MaxContentBytes)
	}
	if in.Importance < 0 || in.Importance > 1 {
		return memexerr.New(memexerr.Invalid, "importance must be in [0, 1]")
	}
	if in.TTLHours != nil && *in.TTLHours < 0 {
		return memexerr.New(memexerr.Invalid, "ttl_hours must not be negative")
	}
	if in.Metadata != nil {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return memexerr.Wrap(memexerr.Invalid, "encode metadata", err)
		}
		if len(raw) > model.MaxMetadataBytes {
			return memexerr.Newf(memexerr.Invalid, "metadata exceeds %d bytes", model.MaxMetadataBytes)
		}
	}
	return nil
}

// Save validates in, assigns id and timestamps, upserts the owning session
// if it does not exist yet, enforces the per-user quota in the same
// transaction as the insert, and returns the new memory id.
func (e *Engine) Save(ctx context.Context, in SaveInput) (string, error) {
	if err := e.checkValid(); err != nil {
		return "", err
	}
	if err := e.checkRate(in.UserID); err != nil {
		return "", err
	}
	if err := validateSaveInput(in); err != nil {
		return "", err
	}

	cfg := e.Config()
	now := e.clockNow()
	m := &model.Memory{
		ID:         e.idGen.New(),
		UserID:     in.UserID,
		SessionID:  in.SessionID,
		Content:    in.Content,
		Importance: in.Importance,
		TTLHours:   model.NormalizedTTLHours(in.TTLHours),
		CreatedAt:  now,
		UpdatedAt:  now,
		Metadata:   in.Metadata,
		Tags:       in.Tags,
	}
	m.ExpiresAt = model.ExpiresAt(m.CreatedAt, m.TTLHours)

	var id string
	err := e.withWriteTx(ctx, func(tx *sql.Tx) error {
		exists, err := e.sessRepo.Exists(ctx, tx, in.SessionID)
		if err != nil {
			return err
		}
		if !exists {
			if err := e.sessRepo.Create(ctx, tx, &model.Session{
				ID: in.SessionID, UserID: in.UserID,
				CreatedAt: now, UpdatedAt: now, LastActivityAt: now,
			}); err != nil {
				return err
			}
		} else if err := e.sessRepo.UpdateActivity(ctx, tx, in.SessionID, now); err != nil {
			return err
		}

		if err := e.admitUnderQuota(ctx, tx, in.UserID, cfg, now); err != nil {
			return err
		}

		if err := e.memRepo.Insert(ctx, tx, m); err != nil {
			return err
		}
		id = m.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// admitUnderQuota checks the per-user memory count inside tx and, if the
// count already equals the configured cap, either evicts the user's
// lowest-importance row (when auto_evict_on_quota is enabled) or rejects the
// save with QuotaExceeded.
func (e *Engine) admitUnderQuota(ctx context.Context, tx *sql.Tx, userID string, cfg Config, now time.Time) error {
	count, err := e.memRepo.CountByUser(ctx, tx, userID)
	if err != nil {
		return err
	}
	if count < cfg.MaxMemoriesPerUser {
		return nil
	}
	if !cfg.AutoEvictOnQuota {
		return memexerr.Newf(memexerr.QuotaExceeded, "user %s has reached max_memories_per_user (%d)", userID, cfg.MaxMemoriesPerUser)
	}
	victim, found, err := e.memRepo.LowestImportance(ctx, tx, userID)
	if err != nil {
		return err
	}
	if !found {
		return memexerr.Newf(memexerr.QuotaExceeded, "user %s has reached max_memories_per_user (%d)", userID, cfg.MaxMemoriesPerUser)
	}
	return e.memRepo.Delete(ctx, tx, victim)
}

// BatchResult is one row's outcome within a save_batch response.
type BatchResult struct {
	Index  int    `json:"index"`
	Status string `json:"status"` // "ok" or "error"
	ID     string `json:"id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// BatchResponse is save_batch's response shape.
type BatchResponse struct {
	Results      []BatchResult `json:"results"`
	SuccessCount int           `json:"success_count"`
	FailureCount int           `json:"failure_count"`
}

// SaveBatch inserts memories either atomically (fail_on_error=true, one
// transaction, any error rolls back the whole batch) or independently
// (fail_on_error=false, one sub-transaction per up-to max_batch_size chunk;
// per-row validation errors are collected rather than aborting the batch).
func (e *Engine) SaveBatch(ctx context.Context, inputs []SaveInput, failOnError bool) (*BatchResponse, error) {
	if err := e.checkValid(); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return &BatchResponse{Results: []BatchResult{}}, nil
	}

	if failOnError {
		return e.saveBatchAtomic(ctx, inputs)
	}
	return e.saveBatchBestEffort(ctx, inputs)
}

func (e *Engine) saveBatchAtomic(ctx context.Context, inputs []SaveInput) (*BatchResponse, error) {
	resp := &BatchResponse{Results: make([]BatchResult, len(inputs))}
	err := e.withWriteTx(ctx, func(tx *sql.Tx) error {
		for i, in := range inputs {
			id, err := e.saveOne(ctx, tx, in)
			if err != nil {
				return memexerr.Wrap(memexerr.KindOf(err), "save_batch aborted at index "+strconv.Itoa(i), err)
			}
			resp.Results[i] = BatchResult{Index: i, Status: "ok", ID: id}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp.SuccessCount = len(inputs)
	return resp, nil
}

func (e *Engine) saveBatchBestEffort(ctx context.Context, inputs []SaveInput) (*BatchResponse, error) {
	cfg := e.Config()
	chunkSize := cfg.MaxBatchSize
	if chunkSize <= 0 {
		chunkSize = 100
	}

	resp := &BatchResponse{Results: make([]BatchResult, len(inputs))}
	for start := 0; start < len(inputs); start += chunkSize {
		end := start + chunkSize
		if end > len(inputs) {
			end = len(inputs)
		}
		if err := e.saveChunkBestEffort(ctx, inputs[start:end], start, resp); err != nil {
			return nil, err // infrastructure error: abort the current sub-transaction's chunk and fail the call
		}
	}
	return resp, nil
}

func (e *Engine) saveChunkBestEffort(ctx context.Context, inputs []SaveInput, offset int, resp *BatchResponse) error {
	return e.withWriteTx(ctx, func(tx *sql.Tx) error {
		for i, in := range inputs {
			idx := offset + i
			id, err := e.saveOne(ctx, tx, in)
			if err != nil {
				if memexerr.KindOf(err) == memexerr.Invalid || memexerr.KindOf(err) == memexerr.QuotaExceeded {
					resp.Results[idx] = BatchResult{Index: idx, Status: "error", Error: err.Error()}
					resp.FailureCount++
					continue
				}
				return err // infrastructure error aborts this sub-transaction
			}
			resp.Results[idx] = BatchResult{Index: idx, Status: "ok", ID: id}
			resp.SuccessCount++
		}
		return nil
	})
}

// saveOne is Save's body, parameterized over an already-open transaction so
// both SaveBatch paths can share it.
func (e *Engine) saveOne(ctx context.Context, tx *sql.Tx, in SaveInput) (string, error) {
	if err := validateSaveInput(in); err != nil {
		return "", err
	}
	cfg := e.Config()
	now := e.clockNow()

	exists, err := e.sessRepo.Exists(ctx, tx, in.SessionID)
	if err != nil {
		return "", err
	}
	if !exists {
		if err := e.sessRepo.Create(ctx, tx, &model.Session{
			ID: in.SessionID, UserID: in.UserID,
			CreatedAt: now, UpdatedAt: now, LastActivityAt: now,
		}); err != nil {
			return "", err
		}
	} else if err := e.sessRepo.UpdateActivity(ctx, tx, in.SessionID, now); err != nil {
		return "", err
	}

	if err := e.admitUnderQuota(ctx, tx, in.UserID, cfg, now); err != nil {
		return "", err
	}

	m := &model.Memory{
		ID:         e.idGen.New(),
		UserID:     in.UserID,
		SessionID:  in.SessionID,
		Content:    in.Content,
		Importance: in.Importance,
		TTLHours:   model.NormalizedTTLHours(in.TTLHours),
		CreatedAt:  now,
		UpdatedAt:  now,
		Metadata:   in.Metadata,
		Tags:       in.Tags,
	}
	m.ExpiresAt = model.ExpiresAt(m.CreatedAt, m.TTLHours)
	if err := e.memRepo.Insert(ctx, tx, m); err != nil {
		return "", err
	}
	return m.ID, nil
}

// Recall applies filter defaults, rejects malformed filters, lists matching
// memories, and schedules best-effort access bookkeeping for every row
// returned.
func (e *Engine) Recall(ctx context.Context, filter model.QueryFilter) (model.PageResponse[model.Memory], error) {
	var zero model.PageResponse[model.Memory]
	if err := e.checkValid(); err != nil {
		return zero, err
	}
	if err := validateFilter(filter); err != nil {
		return zero, err
	}
	filter = filter.WithDefaults()

	data, total, _, err := e.memRepo.ListByFilter(ctx, e.storage.Reader(), filter, true)
	if err != nil {
		return zero, err
	}
	for _, m := range data {
		e.accessQ.Enqueue(m.ID)
	}
	return model.NewPageResponse(data, total, filter.Limit, filter.Offset), nil
}

func validateFilter(f model.QueryFilter) error {
	if f.Limit < 0 || f.Limit > model.MaxLimit {
		return memexerr.Newf(memexerr.Invalid, "limit must be between 0 and %d", model.MaxLimit)
	}
	if f.Offset < 0 {
		return memexerr.New(memexerr.Invalid, "offset must not be negative")
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return memexerr.New(memexerr.Invalid, "date_from must not be after date_to")
	}
	if f.MinImportance != nil && (*f.MinImportance < 0 || *f.MinImportance > 1) {
		return memexerr.New(memexerr.Invalid, "min_importance must be in [0, 1]")
	}
	return nil
}

// Search is recall with keywords=[query] and user_id set, the convenience
// operation the public API exposes directly.
func (e *Engine) Search(ctx context.Context, userID, query string, limit, offset int) (model.PageResponse[model.Memory], error) {
	return e.Recall(ctx, model.QueryFilter{
		UserID:   userID,
		Keywords: []string{query},
		Limit:    limit,
		Offset:   offset,
	})
}

// GetMemory fetches a single memory by id.
func (e *Engine) GetMemory(ctx context.Context, id string) (*model.Memory, error) {
	if err := e.checkValid(); err != nil {
		return nil, err
	}
	return e.memRepo.Get(ctx, e.storage.Reader(), id)
}

// UpdateInput carries update_memory's optional partial fields.
type UpdateInput struct {
	Content     *string
	Importance  *float64
	Metadata    map[string]any
	MetadataSet bool
	Tags        []string
	TagsSet     bool
	TTLHours    *int
	TTLHoursSet bool
}

// UpdateMemory applies a partial update and returns the updated row.
func (e *Engine) UpdateMemory(ctx context.Context, id string, in UpdateInput) (*model.Memory, error) {
	if err := e.checkValid(); err != nil {
		return nil, err
	}
	if in.Importance != nil && (*in.Importance < 0 || *in.Importance > 1) {
		return nil, memexerr.New(memexerr.Invalid, "importance must be in [0, 1]")
	}
	if in.Content != nil && len(*in.Content) > model.MaxContentBytes {
		return nil, memexerr.Newf(memexerr.Invalid, "content exceeds %d bytes", model.MaxContentBytes)
	}

	var updated *model.Memory
	err := e.withWriteTx(ctx, func(tx *sql.Tx) error {
		m, err := e.memRepo.Update(ctx, tx, id, store.MemoryPatch{
			Content:     in.Content,
			Importance:  in.Importance,
			Metadata:    in.Metadata,
			MetadataSet: in.MetadataSet,
			Tags:        in.Tags,
			TagsSet:     in.TagsSet,
			TTLHours:    in.TTLHours,
			TTLHoursSet: in.TTLHoursSet,
		}, e.clockNow())
		if err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteMemory removes a memory by id.
func (e *Engine) DeleteMemory(ctx context.Context, id string) error {
	if err := e.checkValid(); err != nil {
		return err
	}
	return e.withWriteTx(ctx, func(tx *sql.Tx) error {
		return e.memRepo.Delete(ctx, tx, id)
	})
}

