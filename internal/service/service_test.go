package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"pricehawk/internal/model"
	"pricehawk/internal/pkg/notify"
	"pricehawk/internal/scraper"
	"pricehawk/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s := store.New(db, rdb, testLogger())
	if err := s.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

// fakeSearcher 返回固定结果的搜索器。
type fakeSearcher struct {
	items []scraper.Item
}

func (f *fakeSearcher) Search(ctx context.Context, query string, sources []string, sortOrder string) []scraper.Item {
	out := make([]scraper.Item, len(f.items))
	copy(out, f.items)
	return out
}

// fakePages 返回固定商品的详情页抓取器。
type fakePages struct {
	product *model.Product
	err     error
	calls   int
}

func (f *fakePages) Scrape(ctx context.Context, pageURL, retailer string) (*model.Product, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.product, nil
}

// captureNotifier 记录派发的事件，可配置为投递失败。
type captureNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (c *captureNotifier) Dispatch(ctx context.Context, event notify.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return c.err
}

func (c *captureNotifier) Events() []notify.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]notify.Event, len(c.events))
	copy(out, c.events)
	return out
}

func searchItem(name, retailer, price string) scraper.Item {
	return scraper.Item{Product: model.Product{
		ID:       model.ProductID(name, retailer),
		Name:     name,
		Retailer: retailer,
		Price:    decimal.RequireFromString(price),
		URL:      "https://shop.test/" + name,
	}}
}

func TestPerformSearch_PersistsResults(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	searcher := &fakeSearcher{items: []scraper.Item{
		searchItem("Mouse A", "Amazon", "24.99"),
		searchItem("Mouse B", "Walmart", "19.99"),
	}}
	engine := NewAlertEngine(st, nil, testLogger())
	svc := NewSearchService(searcher, &fakePages{}, st, engine, testLogger())

	products, err := svc.PerformSearch(ctx, "mouse", nil, scraper.SortPriceAsc)
	if err != nil {
		t.Fatalf("perform search: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products returned, got %d", len(products))
	}

	for _, p := range products {
		stored, err := st.GetProduct(ctx, p.ID)
		if err != nil {
			t.Fatalf("product %s not persisted: %v", p.Name, err)
		}
		history, err := st.History(ctx, stored.ID, time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(history) != 1 {
			t.Fatalf("expected 1 observation for %s, got %d", p.Name, len(history))
		}
	}

	recent, err := st.RecentSearches(ctx, 10)
	if err != nil {
		t.Fatalf("recent searches: %v", err)
	}
	if len(recent) != 1 || recent[0].Query != "mouse" {
		t.Fatalf("query not recorded: %+v", recent)
	}
}

func TestPerformSearch_RepeatedSearchDoesNotDuplicateObservations(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	item := searchItem("Laptop", "Best Buy", "999.00")
	searcher := &fakeSearcher{items: []scraper.Item{item}}
	engine := NewAlertEngine(st, nil, testLogger())
	svc := NewSearchService(searcher, &fakePages{}, st, engine, testLogger())

	// 同一秒内的重复搜索会落在同一个 observed_at 键上
	if _, err := svc.PerformSearch(ctx, "laptop", nil, scraper.SortPriceAsc); err != nil {
		t.Fatalf("first search: %v", err)
	}
	if _, err := svc.PerformSearch(ctx, "laptop", nil, scraper.SortPriceAsc); err != nil {
		t.Fatalf("second search: %v", err)
	}

	history, err := st.History(ctx, item.Product.ID, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) > 2 {
		t.Fatalf("expected at most 2 observations, got %d", len(history))
	}
}

func TestPerformSearch_StoreFailureSurfacesError(t *testing.T) {
	ctx := context.Background()

	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.New(db, rdb, testLogger())
	if err := st.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// 关闭底层连接模拟数据库不可达
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("close sql db: %v", err)
	}

	searcher := &fakeSearcher{items: []scraper.Item{
		searchItem("Webcam", "Amazon", "59.99"),
	}}
	engine := NewAlertEngine(st, nil, testLogger())
	svc := NewSearchService(searcher, &fakePages{}, st, engine, testLogger())

	if _, err := svc.PerformSearch(ctx, "webcam", nil, scraper.SortPriceAsc); err == nil {
		t.Fatal("unreachable store must surface a persistence error")
	}
}

func TestAlertEngine_Evaluate(t *testing.T) {
	tests := []struct {
		name        string
		condition   string
		target      string
		price       string
		wantTrigger bool
	}{
		{"below triggers at or under target", "below", "100", "100", true},
		{"below triggers under target", "below", "100", "80", true},
		{"below holds above target", "below", "100", "120", false},
		{"above triggers at or over target", "above", "100", "100", true},
		{"above triggers over target", "above", "100", "150", true},
		{"above holds under target", "above", "100", "90", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore(t)
			ctx := context.Background()

			p := &model.Product{Name: "Camera", Retailer: "Target", Price: decimal.RequireFromString("100")}
			if err := st.UpsertProduct(ctx, p); err != nil {
				t.Fatalf("seed product: %v", err)
			}
			id, err := st.CreateOrUpdateAlert(ctx, p.ID, decimal.RequireFromString(tt.target), tt.condition, "a@example.com")
			if err != nil {
				t.Fatalf("create alert: %v", err)
			}

			notifier := &captureNotifier{}
			engine := NewAlertEngine(st, notifier, testLogger())
			engine.Evaluate(ctx, p.ID, decimal.RequireFromString(tt.price))

			alert, err := st.GetAlert(ctx, id)
			if err != nil {
				t.Fatalf("get alert: %v", err)
			}
			if alert.LastChecked == nil {
				t.Error("last_checked must be set on every evaluation pass")
			}
			if alert.IsActive == tt.wantTrigger {
				t.Errorf("is_active = %v after evaluation, wantTrigger = %v", alert.IsActive, tt.wantTrigger)
			}
			if got := len(notifier.Events()); (got == 1) != tt.wantTrigger {
				t.Errorf("got %d notifications, wantTrigger = %v", got, tt.wantTrigger)
			}
		})
	}
}

func TestAlertEngine_SingleShot(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	p := &model.Product{Name: "Drone", Retailer: "Amazon", Price: decimal.RequireFromString("500")}
	if err := st.UpsertProduct(ctx, p); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if _, err := st.CreateOrUpdateAlert(ctx, p.ID, decimal.RequireFromString("400"), "below", "a@example.com"); err != nil {
		t.Fatalf("create alert: %v", err)
	}

	notifier := &captureNotifier{}
	engine := NewAlertEngine(st, notifier, testLogger())

	engine.Evaluate(ctx, p.ID, decimal.RequireFromString("390"))
	engine.Evaluate(ctx, p.ID, decimal.RequireFromString("380"))

	if got := len(notifier.Events()); got != 1 {
		t.Fatalf("alert must fire exactly once, got %d notifications", got)
	}
}

func TestAlertEngine_DispatchFailureStillDeactivates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	p := &model.Product{Name: "Printer", Retailer: "Walmart", Price: decimal.RequireFromString("200")}
	if err := st.UpsertProduct(ctx, p); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	id, err := st.CreateOrUpdateAlert(ctx, p.ID, decimal.RequireFromString("150"), "below", "a@example.com")
	if err != nil {
		t.Fatalf("create alert: %v", err)
	}

	notifier := &captureNotifier{err: errors.New("smtp down")}
	engine := NewAlertEngine(st, notifier, testLogger())
	engine.Evaluate(ctx, p.ID, decimal.RequireFromString("140"))

	alert, err := st.GetAlert(ctx, id)
	if err != nil {
		t.Fatalf("get alert: %v", err)
	}
	if alert.IsActive {
		t.Fatal("dispatch failure must not keep the alert active")
	}
}

func TestAlertEngine_EventCarriesProduct(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	p := &model.Product{Name: "Soundbar", Retailer: "Best Buy", Price: decimal.RequireFromString("300")}
	if err := st.UpsertProduct(ctx, p); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if _, err := st.CreateOrUpdateAlert(ctx, p.ID, decimal.RequireFromString("250"), "below", "buyer@example.com"); err != nil {
		t.Fatalf("create alert: %v", err)
	}

	notifier := &captureNotifier{}
	engine := NewAlertEngine(st, notifier, testLogger())
	engine.Evaluate(ctx, p.ID, decimal.RequireFromString("240"))

	events := notifier.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.ContactEmail != "buyer@example.com" || ev.Condition != "below" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Product == nil || ev.Product.Name != "Soundbar" {
		t.Errorf("event must carry the product: %+v", ev.Product)
	}
	if !ev.TriggeringPrice.Equal(decimal.RequireFromString("240")) {
		t.Errorf("unexpected triggering price: %s", ev.TriggeringPrice)
	}
}

func TestRefreshProduct(t *testing.T) {
	t.Run("appends observation and evaluates alerts", func(t *testing.T) {
		st := newTestStore(t)
		ctx := context.Background()

		p := &model.Product{Name: "Desk Lamp", Retailer: "Target", Price: decimal.RequireFromString("40"), URL: "https://www.target.com/p/lamp"}
		if err := st.UpsertProduct(ctx, p); err != nil {
			t.Fatalf("seed product: %v", err)
		}
		if _, err := st.CreateOrUpdateAlert(ctx, p.ID, decimal.RequireFromString("35"), "below", "a@example.com"); err != nil {
			t.Fatalf("create alert: %v", err)
		}

		fresh := *p
		fresh.Price = decimal.RequireFromString("30")
		pages := &fakePages{product: &fresh}
		notifier := &captureNotifier{}
		engine := NewAlertEngine(st, notifier, testLogger())
		svc := NewSearchService(&fakeSearcher{}, pages, st, engine, testLogger())

		if err := svc.RefreshProduct(ctx, p.ID); err != nil {
			t.Fatalf("refresh: %v", err)
		}
		if pages.calls != 1 {
			t.Fatalf("expected 1 page scrape, got %d", pages.calls)
		}

		history, err := st.History(ctx, p.ID, time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(history) != 1 {
			t.Fatalf("expected 1 observation after refresh, got %d", len(history))
		}
		if len(notifier.Events()) != 1 {
			t.Fatal("price drop below target must trigger the alert")
		}
	})

	t.Run("demo products are skipped", func(t *testing.T) {
		st := newTestStore(t)
		ctx := context.Background()

		p := &model.Product{Name: "Mouse - Demo Product 1", Retailer: scraper.DemoRetailer, Price: decimal.RequireFromString("299.99"), URL: "https://example.com/product1"}
		if err := st.UpsertProduct(ctx, p); err != nil {
			t.Fatalf("seed product: %v", err)
		}

		pages := &fakePages{err: errors.New("must not be called")}
		svc := NewSearchService(&fakeSearcher{}, pages, st, NewAlertEngine(st, nil, testLogger()), testLogger())

		if err := svc.RefreshProduct(ctx, p.ID); err != nil {
			t.Fatalf("refresh: %v", err)
		}
		if pages.calls != 0 {
			t.Fatal("demo product must not hit the page scraper")
		}
	})

	t.Run("identity drift is dropped", func(t *testing.T) {
		st := newTestStore(t)
		ctx := context.Background()

		p := &model.Product{Name: "SSD 1TB", Retailer: "Newegg", Price: decimal.RequireFromString("90"), URL: "https://www.newegg.com/p/ssd"}
		if err := st.UpsertProduct(ctx, p); err != nil {
			t.Fatalf("seed product: %v", err)
		}

		renamed := &model.Product{Name: "SSD 2TB", Retailer: "Newegg", Price: decimal.RequireFromString("150")}
		renamed.ID = model.ProductID(renamed.Name, renamed.Retailer)
		svc := NewSearchService(&fakeSearcher{}, &fakePages{product: renamed}, st, NewAlertEngine(st, nil, testLogger()), testLogger())

		if err := svc.RefreshProduct(ctx, p.ID); err != nil {
			t.Fatalf("refresh: %v", err)
		}
		history, err := st.History(ctx, p.ID, time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(history) != 0 {
			t.Fatal("observation for a different identity must not be appended")
		}
	})
}
