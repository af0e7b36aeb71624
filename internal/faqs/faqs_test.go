package faqs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func returnsFAQ() CreateInput {
	return CreateInput{
		Question: "How do I return a product?",
		Answer:   "Open My Orders, pick the order and choose Request Return within 30 days.",
		Category: CategoryReturns,
		Keywords: []string{"return", "send back"},
		Priority: 10,
	}
}

func TestCreateInputValidate(t *testing.T) {
	assert.NoError(t, returnsFAQ().Validate())

	tests := []struct {
		name  string
		mut   func(*CreateInput)
		field string
	}{
		{"short question", func(in *CreateInput) { in.Question = "Return?" }, "question"},
		{"long answer", func(in *CreateInput) { in.Answer = strings.Repeat("a", 5001) }, "answer"},
		{"unknown category", func(in *CreateInput) { in.Category = "warranty" }, "category"},
		{"priority too high", func(in *CreateInput) { in.Priority = 101 }, "priority"},
		{"negative priority", func(in *CreateInput) { in.Priority = -1 }, "priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := returnsFAQ()
			tt.mut(&in)
			var verr *ValidationError
			require.ErrorAs(t, in.Validate(), &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCategoryDisplayName(t *testing.T) {
	assert.Equal(t, "Shipping", CategoryShipping.DisplayName())
	assert.Equal(t, "Out Of Stock", Category("out_of_stock").DisplayName())
}

func TestFAQMatches(t *testing.T) {
	f := FAQ{Question: "Where is my parcel?", Answer: "Track it from the orders page.", Keywords: []string{"Courier"}}
	assert.True(t, f.Matches("PARCEL"))
	assert.True(t, f.Matches("orders page"))
	assert.True(t, f.Matches("courier"))
	assert.False(t, f.Matches("refund"))
	assert.True(t, f.Matches(" "))
}

func TestMemoryRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	low, err := repo.Create(ctx, CreateInput{Question: "Do you ship abroad?", Answer: "Only within India for now.", Category: CategoryShipping})
	require.NoError(t, err)
	high, err := repo.Create(ctx, returnsFAQ())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(high.ID, "faq_"))
	assert.NotNil(t, low.Keywords)

	all, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, high.ID, all[0].ID)

	shipping, err := repo.List(ctx, ListFilter{Category: CategoryShipping})
	require.NoError(t, err)
	require.Len(t, shipping, 1)

	priority := 50
	updated, err := repo.Update(ctx, low.ID, UpdateInput{Priority: &priority})
	require.NoError(t, err)
	assert.Equal(t, 50, updated.Priority)
	assert.NotNil(t, updated.UpdatedAt)
	assert.Equal(t, "Do you ship abroad?", updated.Question)

	require.NoError(t, repo.Delete(ctx, high.ID))
	assert.ErrorIs(t, repo.Delete(ctx, high.ID), ErrFAQNotFound)
	_, err = repo.Get(ctx, high.ID)
	assert.ErrorIs(t, err, ErrFAQNotFound)

	_, err = repo.Update(ctx, "faq_missing", UpdateInput{})
	assert.ErrorIs(t, err, ErrFAQNotFound)
}

var pgColumns = []string{"id", "question", "answer", "category", "keywords", "priority", "is_active",
	"view_count", "helpful_count", "created_at", "updated_at"}

func TestPostgresRepository(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := newPostgresRepositoryWithQuerier(mock)
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM faqs WHERE is_active AND category = \\$1").WithArgs("returns").
		WillReturnRows(pgxmock.NewRows(pgColumns).AddRow(
			"faq_1", "How do I return a product?", "Use the returns page.", "returns",
			[]string{"return"}, 10, true, 150, 45, created, nil,
		))
	mock.ExpectQuery("FROM faqs WHERE id = \\$1 AND is_active").WithArgs("faq_404").WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("UPDATE faqs SET is_active = false").WithArgs("faq_1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE faqs SET is_active = false").WithArgs("faq_1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	items, err := repo.List(ctx, ListFilter{Category: CategoryReturns})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, CategoryReturns, items[0].Category)
	assert.Equal(t, 45, items[0].HelpfulCount)

	_, err = repo.Get(ctx, "faq_404")
	assert.ErrorIs(t, err, ErrFAQNotFound)

	require.NoError(t, repo.Delete(ctx, "faq_1"))
	assert.ErrorIs(t, repo.Delete(ctx, "faq_1"), ErrFAQNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryUpdateMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := newPostgresRepositoryWithQuerier(mock)

	mock.ExpectQuery("UPDATE faqs SET").
		WithArgs("faq_404", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	_, err = repo.Update(context.Background(), "faq_404", UpdateInput{})
	assert.ErrorIs(t, err, ErrFAQNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

type brokenRepo struct{ MemoryRepository }

func (*brokenRepo) List(context.Context, ListFilter) ([]FAQ, error) {
	return nil, errors.New("db down")
}

func TestHandlerRoutes(t *testing.T) {
	repo := NewMemoryRepository()
	seeded, err := repo.Create(context.Background(), returnsFAQ())
	require.NoError(t, err)
	_, err = repo.Create(context.Background(), CreateInput{Question: "When will my order ship?", Answer: "Most orders ship within 24 hours.", Category: CategoryShipping, Keywords: []string{"dispatch"}})
	require.NoError(t, err)
	routes := NewHandler(repo, nil).Routes()

	do := func(method, target string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		rec := httptest.NewRecorder()
		routes.ServeHTTP(rec, httptest.NewRequest(method, target, &buf))
		return rec
	}

	t.Run("list with search", func(t *testing.T) {
		rec := do(http.MethodGet, "/?search=dispatch", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var items []FAQ
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&items))
		require.Len(t, items, 1)
		assert.Equal(t, CategoryShipping, items[0].Category)
	})

	t.Run("invalid category", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/?category=warranty", nil).Code)
	})

	t.Run("categories", func(t *testing.T) {
		rec := do(http.MethodGet, "/categories", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Categories []categoryCount `json:"categories"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp.Categories, len(Categories))
		counts := map[Category]int{}
		for _, c := range resp.Categories {
			counts[c.Name] = c.Count
		}
		assert.Equal(t, 1, counts[CategoryReturns])
		assert.Equal(t, 0, counts[CategoryAccount])
	})

	t.Run("create rejects short question", func(t *testing.T) {
		rec := do(http.MethodPost, "/", CreateInput{Question: "Hi", Answer: "Hello there, friend.", Category: CategoryGeneral})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "question")
	})

	t.Run("update and delete", func(t *testing.T) {
		answer := "Returns are free within 30 days of delivery."
		rec := do(http.MethodPut, "/"+seeded.ID, UpdateInput{Answer: &answer})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "free within 30 days")

		assert.Equal(t, http.StatusOK, do(http.MethodDelete, "/"+seeded.ID, nil).Code)
		assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/"+seeded.ID, nil).Code)
		assert.Equal(t, http.StatusNotFound, do(http.MethodDelete, "/"+seeded.ID, nil).Code)
	})

	t.Run("repository failure", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHandler(&brokenRepo{}, nil).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
