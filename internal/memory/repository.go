package memory

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dinebot/app/internal/db"
)

// Repository defines persistence operations for per-user conversation memory.
type Repository interface {
	// Get returns the stored memory or nil when the user has none.
	Get(ctx context.Context, userID string) (*Summary, error)
	// Append adds a turn summary to the user's memory and returns the combined result.
	Append(ctx context.Context, userID, turn string) (*Summary, error)
	Delete(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
}

// ErrUserIDRequired is returned when a repository call receives a blank user id.
var ErrUserIDRequired = eris.New("user id is required")

// GormRepository persists memory rows using a Gorm database connection.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
	now    func() time.Time
}

var _ Repository = (*GormRepository)(nil)

// combineExpr concatenates inside the database so that concurrent appends for
// one user cannot overwrite each other.
const combineExpr = "CASE WHEN COALESCE(user_summary_memory.summary, '') = '' " +
	"THEN excluded.summary " +
	"ELSE user_summary_memory.summary || ? || excluded.summary END"

// NewRepository constructs a Gorm-backed repository implementation.
func NewRepository(gormDB *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if gormDB == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormRepository{db: gormDB, logger: logger, now: time.Now}, nil
}

// Get returns the memory row for the user or nil when not found.
func (r *GormRepository) Get(ctx context.Context, userID string) (*Summary, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return nil, ErrUserIDRequired
	}

	var record Summary
	err := r.db.WithContext(ctx).First(&record, "user_id = ?", trimmed).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logWarn(logrus.Fields{"user_id": trimmed}, err, "fetching memory")
		return nil, eris.Wrapf(err, "fetching memory for user: %s", trimmed)
	}

	return &record, nil
}

// Append upserts the user's row, joining the new turn onto any previous memory.
func (r *GormRepository) Append(ctx context.Context, userID, turn string) (*Summary, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return nil, ErrUserIDRequired
	}

	now := r.now().UTC()
	record := Summary{
		UserID:    trimmed,
		Text:      turn,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"summary":    gorm.Expr(combineExpr, Separator),
			"updated_at": now,
		}),
	}).Create(&record).Error
	if err != nil {
		r.logWarn(logrus.Fields{"user_id": trimmed}, err, "appending memory")
		return nil, eris.Wrapf(err, "appending memory for user: %s", trimmed)
	}

	stored, err := r.Get(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, eris.Errorf("memory for user %s missing after append", trimmed)
	}

	return stored, nil
}

// Delete removes the user's memory. Deleting a missing row is not an error.
func (r *GormRepository) Delete(ctx context.Context, userID string) error {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return ErrUserIDRequired
	}

	if err := r.db.WithContext(ctx).Where("user_id = ?", trimmed).Delete(&Summary{}).Error; err != nil {
		r.logWarn(logrus.Fields{"user_id": trimmed}, err, "deleting memory")
		return eris.Wrapf(err, "deleting memory for user: %s", trimmed)
	}

	return nil
}

// Ping checks that the underlying database answers.
func (r *GormRepository) Ping(ctx context.Context) error {
	sqlDB, err := db.SQLDB(r.db)
	if err != nil {
		return err
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return eris.Wrap(err, "pinging memory database")
	}

	return nil
}

func (r *GormRepository) logWarn(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Warn(message)
}
