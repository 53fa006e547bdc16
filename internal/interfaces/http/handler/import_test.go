package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	importapp "github.com/stockledger/backend/internal/application/import"
	"github.com/stockledger/backend/internal/domain/bulk"
	"github.com/stockledger/backend/internal/domain/shared"
)

type MockStockImporter struct {
	mock.Mock
	body string
}

func (m *MockStockImporter) Import(ctx context.Context, input importapp.ImportInput) (*importapp.ImportResult, error) {
	if input.Reader != nil {
		raw, _ := io.ReadAll(input.Reader)
		m.body = string(raw)
	}
	input.Reader = nil
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*importapp.ImportResult), args.Error(1)
}

func (m *MockStockImporter) ListHistory(ctx context.Context, q importapp.HistoryQuery) (*bulk.ImportHistoryListResult, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bulk.ImportHistoryListResult), args.Error(1)
}

func (m *MockStockImporter) GetHistory(ctx context.Context, id uuid.UUID) (*bulk.ImportHistory, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bulk.ImportHistory), args.Error(1)
}

func upload(engine http.Handler, path, filename, content string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, _ := mw.CreateFormFile("file", filename)
		_, _ = part.Write([]byte(content))
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestImportHandler_ImportStock(t *testing.T) {
	imp := new(MockStockImporter)
	admin := shared.Operator{ID: "op-1", Admin: true}
	engine := newEngine(&admin)
	engine.POST("/imports/stock", NewImportHandler(imp).ImportStock)

	imp.On("Import", mock.Anything, importapp.ImportInput{
		Operator:     admin,
		Filename:     "stock.csv",
		Size:         int64(len("id,qty\na,1\n")),
		Warehouse:    "Склад 1",
		ConflictMode: importapp.ConflictModeUpdate,
	}).Return(&importapp.ImportResult{TotalRows: 1, Created: 1}, nil)

	w := upload(engine, "/imports/stock?warehouse=%D0%A1%D0%BA%D0%BB%D0%B0%D0%B4%201", "stock.csv", "id,qty\na,1\n")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result importapp.ImportResult
	decodeData(t, w, &result)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, "id,qty\na,1\n", imp.body)
	imp.AssertExpectations(t)
}

func TestImportHandler_SkipMode(t *testing.T) {
	imp := new(MockStockImporter)
	engine := newEngine(&shared.Operator{ID: "op-1", Admin: true})
	engine.POST("/imports/stock", NewImportHandler(imp).ImportStock)

	imp.On("Import", mock.Anything, mock.MatchedBy(func(in importapp.ImportInput) bool {
		return in.ConflictMode == importapp.ConflictModeSkip
	})).Return(&importapp.ImportResult{}, nil)

	assert.Equal(t, http.StatusOK, upload(engine, "/imports/stock?conflict_mode=skip", "a.xlsx", "x").Code)
	assert.Equal(t, http.StatusBadRequest, upload(engine, "/imports/stock?conflict_mode=merge", "a.xlsx", "x").Code)
}

func TestImportHandler_MissingFile(t *testing.T) {
	imp := new(MockStockImporter)
	engine := newEngine(nil)
	engine.POST("/imports/stock", NewImportHandler(imp).ImportStock)

	assert.Equal(t, http.StatusBadRequest, upload(engine, "/imports/stock", "", "").Code)
	imp.AssertNotCalled(t, "Import", mock.Anything, mock.Anything)
}

func TestImportHandler_PermissionError(t *testing.T) {
	imp := new(MockStockImporter)
	engine := newEngine(&shared.Operator{ID: "op-2"})
	engine.POST("/imports/stock", NewImportHandler(imp).ImportStock)

	imp.On("Import", mock.Anything, mock.Anything).
		Return(nil, shared.NewDomainError(shared.CodeForbidden, "stock import requires an admin"))

	assert.Equal(t, http.StatusForbidden, upload(engine, "/imports/stock", "a.csv", "id\n").Code)
}

func TestImportHandler_History(t *testing.T) {
	imp := new(MockStockImporter)
	engine := newEngine(&shared.Operator{ID: "op-1", Admin: true})
	h := NewImportHandler(imp)
	engine.GET("/imports/history", h.History)

	entry, _ := bulk.NewImportHistory("stock.csv", 10, "anna", "update")
	imp.On("ListHistory", mock.Anything, importapp.HistoryQuery{Status: "failed", Page: 2, PageSize: 5}).
		Return(&bulk.ImportHistoryListResult{Items: []*bulk.ImportHistory{entry}, TotalCount: 6, Page: 2, PageSize: 5}, nil)

	w := do(engine, http.MethodGet, "/imports/history?status=failed&page=2&page_size=5", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(6), resp.Meta.Total)

	var items []bulk.ImportHistory
	decodeData(t, w, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "stock.csv", items[0].FileName)

	assert.Equal(t, http.StatusBadRequest, do(engine, http.MethodGet, "/imports/history?status=done", nil).Code)
	imp.AssertExpectations(t)
}

func TestImportHandler_HistoryEntry(t *testing.T) {
	imp := new(MockStockImporter)
	engine := newEngine(&shared.Operator{ID: "op-1", Admin: true})
	engine.GET("/imports/history/:id", NewImportHandler(imp).HistoryEntry)

	entry, _ := bulk.NewImportHistory("stock.csv", 10, "anna", "update")
	imp.On("GetHistory", mock.Anything, entry.ID).Return(entry, nil)
	missing := uuid.New()
	imp.On("GetHistory", mock.Anything, missing).Return(nil, shared.NewDomainError(shared.CodeNotFound, "import not found"))

	w := do(engine, http.MethodGet, "/imports/history/"+entry.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got bulk.ImportHistory
	decodeData(t, w, &got)
	assert.Equal(t, entry.ID, got.ID)

	assert.Equal(t, http.StatusNotFound, do(engine, http.MethodGet, "/imports/history/"+missing.String(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(engine, http.MethodGet, "/imports/history/not-a-uuid", nil).Code)
}
