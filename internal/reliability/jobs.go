package reliability

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/steward-labs/steward/internal/database"
)

const backupTimeout = 30 * time.Minute

// BackupJob uploads a fresh backup and rotates old ones.
type BackupJob struct {
	service       *BackupService
	retentionDays int
	log           zerolog.Logger
}

func NewBackupJob(service *BackupService, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service:       service,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "backup").Logger(),
	}
}

func (j *BackupJob) Name() string { return "backup" }

func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	if err := j.service.CreateAndUploadBackup(ctx); err != nil {
		return err
	}

	if err := j.service.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Error().Err(err).Msg("Backup rotation failed")
	}

	return nil
}

// MaintenanceJob runs daily database upkeep: integrity checks and WAL
// checkpoints so the WAL files cannot grow without bound.
type MaintenanceJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

func NewMaintenanceJob(databases map[string]*database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		log:       log.With().Str("job", "db_maintenance").Logger(),
	}
}

func (j *MaintenanceJob) Name() string { return "db_maintenance" }

func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	for name, db := range j.databases {
		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("Integrity check failed")
			return err
		}

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("WAL checkpoint failed")
			return err
		}

		j.log.Debug().Str("database", name).Msg("Maintenance completed")
	}

	return nil
}
