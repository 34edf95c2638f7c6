package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/readstreak/adpilot/internal/database"
)

const (
	backupPrefix        = "adpilot-backup-"
	backupTimeLayout    = "2006-01-02-150405"
	backupSchedule      = "0 3 * * *" // daily at 03:00
	minBackupsToKeep    = 3
	backupUploadTimeout = 5 * time.Minute
)

// BackupMetadata describes one backup archive.
type BackupMetadata struct {
	Timestamp time.Time      `json:"timestamp"`
	Files     []FileMetadata `json:"files"`
}

// FileMetadata describes a single file inside a backup.
type FileMetadata struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo summarizes a backup stored in the bucket.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// BackupService snapshots the tracker database and the audit log into a
// tar.gz archive and uploads it daily. Rotation keeps the newest N
// archives, never fewer than three.
type BackupService struct {
	s3        *S3Client
	trackerDB *database.DB
	auditPath string
	dataDir   string
	keep      int
	log       zerolog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewBackupService creates the backup service.
func NewBackupService(s3 *S3Client, trackerDB *database.DB, auditPath, dataDir string, keep int, log zerolog.Logger) *BackupService {
	if keep < minBackupsToKeep {
		keep = minBackupsToKeep
	}
	return &BackupService{
		s3:        s3,
		trackerDB: trackerDB,
		auditPath: auditPath,
		dataDir:   dataDir,
		keep:      keep,
		log:       log.With().Str("component", "backup-service").Logger(),
	}
}

// Start schedules the daily backup. Starting twice is a no-op.
func (s *BackupService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(backupSchedule, s.runScheduled); err != nil {
		return fmt.Errorf("failed to schedule backup: %w", err)
	}
	s.cron.Start()
	s.running = true

	s.log.Info().Str("schedule", backupSchedule).Msg("Backup service started")
	return nil
}

// Stop cancels the schedule.
func (s *BackupService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cron.Stop()
	s.cron = nil
	s.running = false
}

func (s *BackupService) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), backupUploadTimeout)
	defer cancel()

	if err := s.CreateAndUpload(ctx); err != nil {
		s.log.Error().Err(err).Msg("Scheduled backup failed")
		return
	}
	if err := s.Rotate(ctx); err != nil {
		s.log.Error().Err(err).Msg("Backup rotation failed")
	}
}

// CreateAndUpload snapshots the tracker database and audit log into a
// tar.gz archive and uploads it.
func (s *BackupService) CreateAndUpload(ctx context.Context) error {
	startTime := time.Now()

	stagingDir := filepath.Join(s.dataDir, "backup-staging")
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	// VACUUM INTO produces a consistent snapshot without locking writers
	trackerSnapshot := filepath.Join(stagingDir, "tracker.db")
	if _, err := s.trackerDB.Conn().ExecContext(ctx,
		fmt.Sprintf("VACUUM INTO '%s'", trackerSnapshot),
	); err != nil {
		return fmt.Errorf("failed to snapshot tracker database: %w", err)
	}

	files := []string{trackerSnapshot}
	if _, err := os.Stat(s.auditPath); err == nil {
		auditCopy := filepath.Join(stagingDir, filepath.Base(s.auditPath))
		if err := copyFile(s.auditPath, auditCopy); err != nil {
			return fmt.Errorf("failed to copy audit log: %w", err)
		}
		files = append(files, auditCopy)
	}

	metadata := BackupMetadata{Timestamp: time.Now().UTC()}
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
		checksum, err := fileChecksum(path)
		if err != nil {
			return fmt.Errorf("failed to checksum %s: %w", path, err)
		}
		metadata.Files = append(metadata.Files, FileMetadata{
			Name:      filepath.Base(path),
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
	}

	metadataPath := filepath.Join(stagingDir, "backup-metadata.json")
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	files = append(files, metadataPath)

	archiveName := backupPrefix + time.Now().Format(backupTimeLayout) + ".tar.gz"
	archivePath := filepath.Join(stagingDir, archiveName)
	if err := createArchive(archivePath, files); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	archive, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	if err := s.s3.Upload(ctx, archiveName, archive); err != nil {
		return err
	}

	s.log.Info().
		Str("archive", archiveName).
		Dur("elapsed", time.Since(startTime)).
		Msg("Backup uploaded")
	return nil
}

// ListBackups returns the stored backups, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.s3.List(ctx, backupPrefix)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		filename := *obj.Key
		if !strings.HasSuffix(filename, ".tar.gz") {
			continue
		}

		stamp := strings.TrimSuffix(strings.TrimPrefix(filename, backupPrefix), ".tar.gz")
		timestamp, err := time.Parse(backupTimeLayout, stamp)
		if err != nil {
			s.log.Warn().Str("filename", filename).Msg("Skipping backup with unparseable timestamp")
			continue
		}

		var size int64
		if obj.Size != nil {
			size = *obj.Size
		}
		backups = append(backups, BackupInfo{
			Filename:  filename,
			Timestamp: timestamp,
			SizeBytes: size,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// Rotate deletes everything beyond the newest keep archives.
func (s *BackupService) Rotate(ctx context.Context) error {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(backups) <= s.keep {
		return nil
	}

	deleted := 0
	for _, backup := range backups[s.keep:] {
		if err := s.s3.Delete(ctx, backup.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", backup.Filename).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("kept", len(backups)-deleted).
		Msg("Backup rotation completed")
	return nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata BackupMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func createArchive(archivePath string, files []string) error {
	archive, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archive.Close()

	gzipWriter := gzip.NewWriter(archive)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, path := range files {
		if err := addFileToArchive(tarWriter, path); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func addFileToArchive(tarWriter *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    filepath.Base(path),
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tarWriter, f)
	return err
}
