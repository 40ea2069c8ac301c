package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	arkerrors "github.com/tjper/arkctl/cmd/arkctl/errors"
	"github.com/tjper/arkctl/cmd/arkctl/model"
)

// IStore encompasses all interactions with the Persistence Store (C1). Each
// method is atomic; no caller-visible transaction spans more than one call
// (§4.1 guarantee).
type IStore interface {
	UpsertServerConfig(ctx context.Context, serverName, json string) error
	GetServerConfig(ctx context.Context, serverName string) (*model.ServerConfig, error)
	ListServerConfigs(ctx context.Context) ([]model.ServerConfig, error)
	DeleteServerConfig(ctx context.Context, serverName string) error

	UpsertSharedMod(ctx context.Context, modId model.ModId, modName string, enabled bool) error
	ListSharedMods(ctx context.Context) ([]model.SharedMod, error)

	UpsertServerMod(ctx context.Context, serverName string, modId model.ModId, modName string, enabled bool) error
	ListServerMods(ctx context.Context, serverName string) ([]model.ServerMod, error)

	GetServerSettings(ctx context.Context, serverName string) (*model.ServerSettings, error)
	UpsertServerSettings(ctx context.Context, serverName string, excludeSharedMods bool) error

	CreateJob(ctx context.Context, id uuid.UUID, jobType model.JobType, data string) (*model.Job, error)
	UpdateJob(ctx context.Context, id uuid.UUID, changes JobChanges) (*model.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error)
	ListJobs(ctx context.Context) ([]model.Job, error)
	PurgeTerminalJobs(ctx context.Context, olderThan time.Duration) (int64, error)
}

// NewStore creates a Store instance.
func NewStore(logger *zap.Logger, conn *gorm.DB) *Store {
	return &Store{logger: logger, conn: conn}
}

// Store is the gorm-backed IStore implementation.
type Store struct {
	logger *zap.Logger
	conn   *gorm.DB
}

var _ IStore = (*Store)(nil)

// UpsertServerConfig replaces the whole row for serverName. An empty
// serverName is rejected per §4.1.
func (s Store) UpsertServerConfig(ctx context.Context, serverName, json string) error {
	if serverName == "" {
		return arkerrors.New(arkerrors.ValidationFailed, "server config name must not be empty")
	}
	row := model.ServerConfig{ServerName: serverName, JSON: json, UpdatedAt: time.Now()}
	res := s.conn.WithContext(ctx).Save(&row)
	if res.Error != nil {
		return arkerrors.Wrap(arkerrors.IOFailed, res.Error, "upsert server config %q", serverName)
	}
	return nil
}

// GetServerConfig returns the named row, or (nil, nil) if absent.
func (s Store) GetServerConfig(ctx context.Context, serverName string) (*model.ServerConfig, error) {
	var row model.ServerConfig
	err := s.conn.WithContext(ctx).First(&row, "server_name = ?", serverName).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "get server config %q", serverName)
	}
	return &row, nil
}

// ListServerConfigs returns every server config row.
func (s Store) ListServerConfigs(ctx context.Context) ([]model.ServerConfig, error) {
	var rows []model.ServerConfig
	if err := s.conn.WithContext(ctx).Order("server_name").Find(&rows).Error; err != nil {
		return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "list server configs")
	}
	return rows, nil
}

// DeleteServerConfig removes the named row. Deleting an absent row is not an
// error.
func (s Store) DeleteServerConfig(ctx context.Context, serverName string) error {
	res := s.conn.WithContext(ctx).Delete(&model.ServerConfig{}, "server_name = ?", serverName)
	if res.Error != nil {
		return arkerrors.Wrap(arkerrors.IOFailed, res.Error, "delete server config %q", serverName)
	}
	return nil
}

// UpsertSharedMod rejects a null/empty modId (§4.1, §9 "historically a bug
// source").
func (s Store) UpsertSharedMod(ctx context.Context, modId model.ModId, modName string, enabled bool) error {
	if modId == "" {
		return arkerrors.New(arkerrors.ValidationFailed, "shared mod id must not be empty")
	}
	row := model.SharedMod{ModId: modId, ModName: modName, Enabled: enabled}
	if err := s.conn.WithContext(ctx).Save(&row).Error; err != nil {
		return arkerrors.Wrap(arkerrors.IOFailed, err, "upsert shared mod %q", modId)
	}
	return nil
}

// ListSharedMods returns every shared mod row.
func (s Store) ListSharedMods(ctx context.Context) ([]model.SharedMod, error) {
	var rows []model.SharedMod
	if err := s.conn.WithContext(ctx).Order("mod_id").Find(&rows).Error; err != nil {
		return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "list shared mods")
	}
	return rows, nil
}

// UpsertServerMod rejects an empty serverName or modId (§4.1).
func (s Store) UpsertServerMod(ctx context.Context, serverName string, modId model.ModId, modName string, enabled bool) error {
	if serverName == "" || modId == "" {
		return arkerrors.New(arkerrors.ValidationFailed, "server mod requires non-empty serverName and modId")
	}
	row := model.ServerMod{ServerName: serverName, ModId: modId, ModName: modName, Enabled: enabled}
	if err := s.conn.WithContext(ctx).Save(&row).Error; err != nil {
		return arkerrors.Wrap(arkerrors.IOFailed, err, "upsert server mod %q/%q", serverName, modId)
	}
	return nil
}

// ListServerMods returns every mod scoped to serverName.
func (s Store) ListServerMods(ctx context.Context, serverName string) ([]model.ServerMod, error) {
	var rows []model.ServerMod
	if err := s.conn.WithContext(ctx).
		Where("server_name = ?", serverName).
		Order("mod_id").
		Find(&rows).Error; err != nil {
		return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "list server mods for %q", serverName)
	}
	return rows, nil
}

// GetServerSettings returns the named server's settings row, or (nil, nil)
// if absent (the resolver treats absence as excludeSharedMods=false).
func (s Store) GetServerSettings(ctx context.Context, serverName string) (*model.ServerSettings, error) {
	var row model.ServerSettings
	err := s.conn.WithContext(ctx).First(&row, "server_name = ?", serverName).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "get server settings %q", serverName)
	}
	return &row, nil
}

// UpsertServerSettings replaces the named server's settings row.
func (s Store) UpsertServerSettings(ctx context.Context, serverName string, excludeSharedMods bool) error {
	if serverName == "" {
		return arkerrors.New(arkerrors.ValidationFailed, "server settings require a non-empty serverName")
	}
	row := model.ServerSettings{ServerName: serverName, ExcludeSharedMods: excludeSharedMods}
	if err := s.conn.WithContext(ctx).Save(&row).Error; err != nil {
		return arkerrors.Wrap(arkerrors.IOFailed, err, "upsert server settings %q", serverName)
	}
	return nil
}

// CreateJob inserts a new Job in JobPending status.
func (s Store) CreateJob(ctx context.Context, id uuid.UUID, jobType model.JobType, data string) (*model.Job, error) {
	now := time.Now()
	job := model.Job{
		ID:        id,
		Type:      jobType,
		Status:    model.JobPending,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.conn.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "create job %s", id)
	}
	return &job, nil
}

// JobChanges is the partial update accepted by UpdateJob; nil fields are
// left unchanged.
type JobChanges struct {
	Status   *model.JobStatus
	Progress *int
	Message  *string
	Result   *string
	Error    *model.JobError
}

// UpdateJob applies changes to the job. Once a job is in a terminal status
// (invariant J-1), further status/progress/message/result mutation is
// rejected; only the error detail may still be attached in the same call
// that transitions it to failed.
func (s Store) UpdateJob(ctx context.Context, id uuid.UUID, changes JobChanges) (*model.Job, error) {
	var updated *model.Job
	err := s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job model.Job
		if err := tx.First(&job, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return arkerrors.New(arkerrors.NotFound, "job %s does not exist", id)
			}
			return arkerrors.Wrap(arkerrors.IOFailed, err, "get job %s", id)
		}

		if job.Status.IsTerminal() {
			return arkerrors.New(arkerrors.PreconditionFailed, "job %s is already terminal (%s)", id, job.Status)
		}

		values := map[string]interface{}{"updated_at": time.Now()}
		if changes.Status != nil {
			values["status"] = *changes.Status
		}
		if changes.Progress != nil {
			values["progress"] = *changes.Progress
		}
		if changes.Message != nil {
			values["message"] = *changes.Message
		}
		if changes.Result != nil {
			values["result"] = *changes.Result
		}
		if changes.Error != nil {
			errJSON := fmt.Sprintf(`{"kind":%q,"message":%q,"retryable":%t}`, changes.Error.Kind, changes.Error.Message, changes.Error.Retryable)
			values["error_json"] = errJSON
		}

		if err := tx.Model(&job).Updates(values).Error; err != nil {
			return arkerrors.Wrap(arkerrors.IOFailed, err, "update job %s", id)
		}
		if err := tx.First(&job, "id = ?", id).Error; err != nil {
			return arkerrors.Wrap(arkerrors.IOFailed, err, "reload job %s", id)
		}
		updated = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetJob returns a single job by id.
func (s Store) GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	err := s.conn.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, arkerrors.New(arkerrors.NotFound, "job %s does not exist", id)
	}
	if err != nil {
		return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "get job %s", id)
	}
	return &job, nil
}

// ListJobs returns every job, most recently created first.
func (s Store) ListJobs(ctx context.Context) ([]model.Job, error) {
	var jobs []model.Job
	if err := s.conn.WithContext(ctx).Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "list jobs")
	}
	return jobs, nil
}

// PurgeTerminalJobs deletes terminal jobs (succeeded, failed, cancelled)
// last updated more than olderThan ago, per the job lifecycle's "purged
// after configurable TTL" rule. Running and pending jobs are never
// touched, regardless of age.
func (s Store) PurgeTerminalJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := s.conn.WithContext(ctx).
		Where("status IN ?", []model.JobStatus{model.JobSucceeded, model.JobFailed, model.JobCancelled}).
		Where("updated_at < ?", cutoff).
		Delete(&model.Job{})
	if res.Error != nil {
		return 0, arkerrors.Wrap(arkerrors.IOFailed, res.Error, "purge terminal jobs")
	}
	return res.RowsAffected, nil
}
