// Package abandoned records checkout attempts that were started but not paid, so
// they can be followed up.
package abandoned

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// CheckoutData is what the customer had entered when they left.
type CheckoutData struct {
	SessionID    string      `json:"session_id,omitempty"`
	CustomerName string      `json:"customer_name"`
	Email        string      `json:"email"`
	Phone        string      `json:"phone"`
	Items        []cart.Item `json:"items"`
}

// Record is a stored abandoned checkout.
type Record struct {
	ID uuid.UUID `json:"id"`
	CheckoutData
	CreatedAt time.Time `json:"created_at"`
}

type listStore interface {
	ListAppend(ctx context.Context, key string, values ...any) (int64, error)
	ListRange(ctx context.Context, key string) ([]string, error)
	AbandonedCheckoutsKey() string
}

// Recorder keeps every abandoned checkout as one element of a shared list.
// Appends are atomic on the store, so concurrent instances never drop records.
type Recorder interface {
	Save(ctx context.Context, data CheckoutData) (Record, error)
	List(ctx context.Context) ([]Record, error)
}

type recorder struct {
	list  listStore
	logg  *logger.Logger
	now   func() time.Time
	newID func() uuid.UUID
}

func NewRecorder(list listStore, logg *logger.Logger) (Recorder, error) {
	if list == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "abandoned checkout store required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &recorder{list: list, logg: logg, now: time.Now, newID: uuid.New}, nil
}

// Save appends data to the stored list.
func (r *recorder) Save(ctx context.Context, data CheckoutData) (Record, error) {
	if strings.TrimSpace(data.Email) == "" && strings.TrimSpace(data.Phone) == "" {
		return Record{}, pkgerrors.New(pkgerrors.CodeValidation, "email or phone required")
	}

	record := Record{
		ID:           r.newID(),
		CheckoutData: data,
		CreatedAt:    r.now().UTC(),
	}
	if record.Items == nil {
		record.Items = []cart.Item{}
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return Record{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode abandoned checkout")
	}
	if _, err := r.list.ListAppend(ctx, r.list.AbandonedCheckoutsKey(), payload); err != nil {
		return Record{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store abandoned checkout")
	}
	return record, nil
}

// List returns every stored record, oldest first. Elements that do not decode
// are skipped.
func (r *recorder) List(ctx context.Context) ([]Record, error) {
	raw, err := r.list.ListRange(ctx, r.list.AbandonedCheckoutsKey())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read abandoned checkouts")
	}

	records := make([]Record, 0, len(raw))
	skipped := 0
	for _, element := range raw {
		var record Record
		if err := json.Unmarshal([]byte(element), &record); err != nil || record.ID == uuid.Nil {
			skipped++
			continue
		}
		records = append(records, record)
	}
	if skipped > 0 {
		r.logg.Warn(r.logg.WithField(ctx, "skipped", skipped), "abandoned.list.corrupt")
	}
	return records, nil
}
