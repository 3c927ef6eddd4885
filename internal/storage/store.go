package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hirepath/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// 存储层哨兵错误，业务层据此映射为领域错误。
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("unique constraint violated")
	// ErrStale 条件更新未命中任何行：记录已被其他请求改变。
	ErrStale = errors.New("conditional update matched no rows")
	// ErrStaleApplication 关闭轮次时随附的申请已被其他请求改变。
	ErrStaleApplication = errors.New("application changed before round close")
)

// Config 数据库配置。
type Config struct {
	Driver string `yaml:"driver" json:"driver"`
	Path   string `yaml:"path" json:"path"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// Store 封装生命周期记录的持久化，是唯一的状态来源与串行化点。
type Store struct {
	db *gorm.DB
}

// activeApplicationIndex 兜底保证同一申请人对同一职位最多一条非终态申请。
const activeApplicationIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_active_application
ON job_applications (applicant_id, job_posting_id)
WHERE status NOT IN ('ACCEPTED', 'REJECTED')`

// NewStore 以 SQLite 文件创建 Store。
func NewStore(dbPath string) (*Store, error) {
	return Open(Config{Driver: "sqlite", Path: dbPath})
}

// Open 按驱动打开数据库并自动迁移数据表。
func Open(cfg Config) (*Store, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName(cfg), err)
	}

	if err := db.AutoMigrate(
		&model.JobPosting{},
		&model.JobApplication{},
		&model.ApplicationEvent{},
		&model.InterviewSession{},
		&model.AssessmentType{},
		&model.Assessment{},
		&model.Registration{},
		&model.DeliveryRecord{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate models: %w", err)
	}
	if err := db.Exec(activeApplicationIndex).Error; err != nil {
		return nil, fmt.Errorf("create active application index: %w", err)
	}

	return &Store{db: db}, nil
}

func driverName(cfg Config) string {
	name := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if name == "" {
		return "sqlite"
	}
	return name
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	switch driverName(cfg) {
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "hirepath.db"
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		return sqlite.Open(path), nil
	case "postgres":
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, fmt.Errorf("postgres dsn missing")
		}
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Close 关闭底层数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// CreatePosting 新增职位。
func (s *Store) CreatePosting(ctx context.Context, posting *model.JobPosting) error {
	if err := s.db.WithContext(ctx).Create(posting).Error; err != nil {
		return fmt.Errorf("create posting: %w", translate(err))
	}
	return nil
}

// GetPosting 根据 ID 获取职位。
func (s *Store) GetPosting(ctx context.Context, id uint) (*model.JobPosting, error) {
	var posting model.JobPosting
	if err := s.db.WithContext(ctx).First(&posting, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get posting %d: %w", id, translate(err))
	}
	return &posting, nil
}

// RecordDelivery 写入通知投递日志。
func (s *Store) RecordDelivery(ctx context.Context, rec *model.DeliveryRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("record delivery: %w", translate(err))
	}
	return nil
}

// ListDeliveries 按时间倒序返回某类通知的投递日志，kind 为空时返回全部。
func (s *Store) ListDeliveries(ctx context.Context, kind string, limit int) ([]model.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Model(&model.DeliveryRecord{}).Order("id DESC").Limit(limit)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	var recs []model.DeliveryRecord
	if err := query.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return recs, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}
