package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.OrderBump{}, &models.UpsellProduct{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return conn
}

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func bump(order int, opts ...func(*models.OrderBump)) models.OrderBump {
	b := models.OrderBump{
		ID:           uuid.New(),
		Title:        fmt.Sprintf("Bump %d", order),
		Price:        money("19.90"),
		Active:       true,
		DisplayOrder: order,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func TestEligibleOrderBumps(t *testing.T) {
	items := []cart.Item{
		{ID: "prod-1", Price: money("100"), Quantity: 1},
		{ID: "order-bump-old", Price: money("500"), Quantity: 1},
	}
	inCart := bump(0)
	items = append(items, cart.Item{ID: cart.OrderBumpItemID(inCart.ID.String()), Price: money("1"), Quantity: 1})

	plain := bump(3)
	minMet := bump(1, func(b *models.OrderBump) { b.MinCartValue = decimal.NewNullDecimal(money("100")) })
	minMissed := bump(2, func(b *models.OrderBump) { b.MinCartValue = decimal.NewNullDecimal(money("100.01")) })
	requires := bump(0, func(b *models.OrderBump) { b.RequiredProductIDs = []string{"prod-1"} })
	requiresMissing := bump(0, func(b *models.OrderBump) { b.RequiredProductIDs = []string{"prod-2"} })
	inactive := bump(0, func(b *models.OrderBump) { b.Active = false })

	got := EligibleOrderBumps([]models.OrderBump{plain, minMet, minMissed, requires, requiresMissing, inactive, inCart}, items)

	want := []uuid.UUID{requires.ID, minMet.ID, plain.ID}
	if len(got) != len(want) {
		t.Fatalf("expected %d bumps, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s (%s)", i, id, got[i].ID, got[i].Title)
		}
	}
}

func TestOrderBumpItemUsesEffectivePrice(t *testing.T) {
	b := bump(0, func(b *models.OrderBump) { b.DiscountPrice = decimal.NewNullDecimal(money("9.90")) })
	item := OrderBumpItem(b)

	if item.ID != "order-bump-"+b.ID.String() {
		t.Fatalf("unexpected item id %q", item.ID)
	}
	if !item.Price.Equal(money("9.90")) {
		t.Fatalf("expected discounted price, got %s", item.Price)
	}
	if item.Kind != enums.ItemKindOrderBump || item.Quantity != 1 {
		t.Fatalf("unexpected item %+v", item)
	}
}

func TestRepositoryListsInDisplayOrder(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewRepository(db)

	second := bump(2)
	first := bump(1)
	hidden := bump(0)
	for _, b := range []*models.OrderBump{&second, &first, &hidden} {
		if err := db.Create(b).Error; err != nil {
			t.Fatalf("create bump: %v", err)
		}
	}
	if err := db.Model(&models.OrderBump{}).Where("id = ?", hidden.ID).Update("active", false).Error; err != nil {
		t.Fatalf("deactivate bump: %v", err)
	}

	active, err := repo.ListOrderBumps(ctx, true)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 || active[0].ID != first.ID || active[1].ID != second.ID {
		t.Fatalf("unexpected active bumps %+v", active)
	}

	all, err := repo.ListOrderBumps(ctx, false)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 bumps, got %d", len(all))
	}
}

func newTestService(t *testing.T) (Service, *gorm.DB, *cart.Sessions) {
	t.Helper()
	db := newTestDB(t)
	sessions := cart.NewSessions(cart.SessionsOptions{})
	svc, err := NewService(NewRepository(db), sessions)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db, sessions
}

func TestAddOrderBumpIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, db, sessions := newTestService(t)

	b := bump(0)
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("create bump: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.AddOrderBump(ctx, "s1", b.ID); err != nil {
			t.Fatalf("add bump: %v", err)
		}
	}

	store, _ := sessions.Get(ctx, "s1")
	if store.Count() != 1 {
		t.Fatalf("expected one bump line, got count %d", store.Count())
	}
	if !store.Totals().OrderBumpTotal.Equal(money("19.90")) {
		t.Fatalf("unexpected bump total %s", store.Totals().OrderBumpTotal)
	}

	eligible, err := svc.EligibleOrderBumps(ctx, "s1")
	if err != nil {
		t.Fatalf("eligible: %v", err)
	}
	if len(eligible) != 0 {
		t.Fatalf("expected bump in cart to be excluded, got %d", len(eligible))
	}
}

func TestAddOrderBumpErrors(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newTestService(t)

	if _, err := svc.AddOrderBump(ctx, "s1", uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	b := bump(0)
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("create bump: %v", err)
	}
	if err := db.Model(&models.OrderBump{}).Where("id = ?", b.ID).Update("active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.AddOrderBump(ctx, "s1", b.ID); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestActiveUpsells(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newTestService(t)

	offer := models.UpsellProduct{Name: "Mentoria", Price: money("297"), DiscountPrice: decimal.NewNullDecimal(money("197")), Active: true}
	if err := db.Create(&offer).Error; err != nil {
		t.Fatalf("create upsell: %v", err)
	}

	upsells, err := svc.ActiveUpsells(ctx)
	if err != nil {
		t.Fatalf("active upsells: %v", err)
	}
	if len(upsells) != 1 || !upsells[0].EffectivePrice.Equal(money("197")) {
		t.Fatalf("unexpected upsells %+v", upsells)
	}
}
