package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/noface-00/prims/internal/model"
)

// PoolConfig sizes the underlying connection pool.
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// GormStore persists analyses, price history and catalog data in MySQL.
type GormStore struct {
	db           *gorm.DB
	historyLocks sync.Map // product ID -> *sync.Mutex
}

// Open connects to MySQL using dsn and sizes the pool.
func Open(dsn string, pool PoolConfig) (*GormStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = 10
	}
	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 100
	}
	if pool.ConnMaxLifetime <= 0 {
		pool.ConnMaxLifetime = time.Hour
	}
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)

	return New(db), nil
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&ProductAnalysis{},
		&PriceHistory{},
		&Product{},
		&Seller{},
		&Coupon{},
		&ProductImage{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) FindCurrent(ctx context.Context, productID string) (*model.Snapshot, error) {
	var row ProductAnalysis
	err := s.db.WithContext(ctx).Where("product_id = ?", productID).First(&row).Error
	if err != nil {
		return nil, notFound(err, "analysis for "+productID)
	}
	return row.snapshot(), nil
}

// Upsert writes the snapshot as the product's current analysis. The unique
// index on product_id turns concurrent inserts into updates of one row.
func (s *GormStore) Upsert(ctx context.Context, snap *model.Snapshot) error {
	if snap == nil || snap.ProductID == "" {
		return &model.ValidationError{Field: "product_id", Message: "must not be empty"}
	}

	row := analysisRow(snap)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert analysis %s: %w", snap.ProductID, err)
	}
	return nil
}

// Recent returns current analyses, newest first. A limit <= 0 returns all.
func (s *GormStore) Recent(ctx context.Context, limit int) ([]*model.Snapshot, error) {
	q := s.db.WithContext(ctx).Order("analysis_date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []ProductAnalysis
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}

	out := make([]*model.Snapshot, len(rows))
	for i, r := range rows {
		out[i] = r.snapshot()
	}
	return out, nil
}

func (s *GormStore) ListAll(ctx context.Context, productID string) ([]model.PricePoint, error) {
	var rows []PriceHistory
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("recorded_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("price history for %s: %w", productID, err)
	}

	points := make([]model.PricePoint, len(rows))
	for i, r := range rows {
		points[i] = model.PricePoint{Price: r.Price, Currency: r.Currency, Timestamp: r.RecordedAt}
	}
	return points, nil
}

// AppendIfChanged reads the latest row with FOR UPDATE inside a
// transaction and inserts only when the price moved. Callers in this
// process are also serialized per product so they never race for the same
// InnoDB gap lock.
func (s *GormStore) AppendIfChanged(ctx context.Context, productID string, price float64, at time.Time) (bool, error) {
	v, _ := s.historyLocks.LoadOrStore(productID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	appended := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest []PriceHistory
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("product_id = ?", productID).
			Order("recorded_at DESC").
			Limit(1).
			Find(&latest).Error
		if err != nil {
			return err
		}
		if len(latest) > 0 && latest[0].Price == price {
			return nil
		}

		row := PriceHistory{
			ProductID:  productID,
			Price:      price,
			Currency:   defaultCurrency,
			RecordedAt: at,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		appended = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("append price for %s: %w", productID, err)
	}
	return appended, nil
}

func (s *GormStore) Product(ctx context.Context, productID string) (*model.Product, error) {
	var row Product
	if err := s.db.WithContext(ctx).Where("item_id = ?", productID).First(&row).Error; err != nil {
		return nil, notFound(err, "product "+productID)
	}
	return &model.Product{
		ItemID:    row.ItemID,
		Name:      row.Name,
		SellerRef: row.SellerRef,
		URL:       row.URL,
	}, nil
}

// SaveProduct inserts or refreshes a tracked product.
func (s *GormStore) SaveProduct(ctx context.Context, p *model.Product) error {
	row := Product{ItemID: p.ItemID, Name: p.Name, SellerRef: p.SellerRef, URL: p.URL}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "seller_ref", "url", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save product %s: %w", p.ItemID, err)
	}
	return nil
}

func (s *GormStore) Lookup(ctx context.Context, sellerRef string) (*model.Seller, error) {
	var row Seller
	if err := s.db.WithContext(ctx).Where("ref = ?", sellerRef).First(&row).Error; err != nil {
		return nil, notFound(err, "seller "+sellerRef)
	}
	return &model.Seller{
		Ref:             row.Ref,
		Username:        row.Username,
		FeedbackPercent: row.FeedbackPercent,
		FeedbackScore:   row.FeedbackScore,
	}, nil
}

func (s *GormStore) SaveSeller(ctx context.Context, seller *model.Seller) error {
	row := Seller{
		Ref:             seller.Ref,
		Username:        seller.Username,
		FeedbackScore:   seller.FeedbackScore,
		FeedbackPercent: seller.FeedbackPercent,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ref"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "feedback_score", "feedback_percent", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save seller %s: %w", seller.Ref, err)
	}
	return nil
}

// ForProduct returns the product's coupon expiring last.
func (s *GormStore) ForProduct(ctx context.Context, productID string) (*model.Coupon, error) {
	var row Coupon
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("expires_at DESC").
		First(&row).Error
	if err != nil {
		return nil, notFound(err, "coupon for "+productID)
	}
	return &model.Coupon{
		Ref:         row.Ref,
		Code:        row.Code,
		Description: row.Description,
		ExpiresAt:   row.ExpiresAt,
	}, nil
}

func (s *GormStore) MainImage(ctx context.Context, productID string) (string, error) {
	var row ProductImage
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("is_main DESC, id ASC").
		First(&row).Error
	if err != nil {
		return "", notFound(err, "image for "+productID)
	}
	return row.URL, nil
}

func (s *GormStore) SaveImage(ctx context.Context, productID, url string, main bool) error {
	row := ProductImage{ProductID: productID, URL: url, IsMain: main}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("save image for %s: %w", productID, err)
	}
	return nil
}

type dailyRow struct {
	Date  string
	Count int64
}

// GeneralStats summarizes every stored analysis.
func (s *GormStore) GeneralStats(ctx context.Context) (model.GeneralStats, error) {
	var out model.GeneralStats
	db := s.db.WithContext(ctx)

	if err := db.Model(&ProductAnalysis{}).Count(&out.TotalAnalyzed).Error; err != nil {
		return out, fmt.Errorf("count analyses: %w", err)
	}

	var avg struct{ Avg float64 }
	if err := db.Model(&ProductAnalysis{}).Select("COALESCE(AVG(price_difference), 0) AS avg").Scan(&avg).Error; err != nil {
		return out, fmt.Errorf("average price difference: %w", err)
	}
	out.AvgPriceDifference = avg.Avg

	var rows []dailyRow
	err := db.Model(&ProductAnalysis{}).
		Select("DATE_FORMAT(analysis_date, '%Y-%m-%d') AS date, COUNT(*) AS count").
		Group("date").
		Order("date ASC").
		Scan(&rows).Error
	if err != nil {
		return out, fmt.Errorf("daily summary: %w", err)
	}
	out.Daily = make([]model.DailyCount, len(rows))
	for i, r := range rows {
		out.Daily[i] = model.DailyCount{Date: r.Date, Count: r.Count}
	}
	return out, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
