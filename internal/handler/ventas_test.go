package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fitcompany/console/internal/catalog"
	"github.com/fitcompany/console/internal/enum"
	"github.com/fitcompany/console/internal/handler"
	"github.com/fitcompany/console/internal/notice"
	"github.com/fitcompany/console/internal/session"
	"github.com/fitcompany/console/internal/upstream"
	"github.com/fitcompany/console/internal/validate"
)

// --- Mock backend ---

type mockVentaBackend struct {
	mu sync.Mutex

	rows      []map[string]interface{}
	detalle   upstream.VentaDetalle
	getErr    error
	result    upstream.Result
	submitErr error
	deleteErr error
	delay     time.Duration

	payloads []validate.Payload
	ids      []*int64
	tokens   []string
	deleted  []int64
}

func (m *mockVentaBackend) ListVentas(ctx context.Context) ([]map[string]interface{}, error) {
	m.tokens = append(m.tokens, upstream.TokenFrom(ctx))
	return m.rows, nil
}

func (m *mockVentaBackend) GetVenta(_ context.Context, _ int64) (upstream.VentaDetalle, error) {
	return m.detalle, m.getErr
}

func (m *mockVentaBackend) SubmitVenta(ctx context.Context, id *int64, payload validate.Payload) (upstream.Result, error) {
	time.Sleep(m.delay)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, upstream.TokenFrom(ctx))
	m.ids = append(m.ids, id)
	m.payloads = append(m.payloads, payload)
	return m.result, m.submitErr
}

func (m *mockVentaBackend) DeleteVenta(_ context.Context, id int64) (upstream.Result, error) {
	m.deleted = append(m.deleted, id)
	return upstream.Result{}, m.deleteErr
}

// --- Helpers ---

type testLine struct {
	Index          int     `json:"index"`
	ProductoID     *int64  `json:"id_producto"`
	Nombre         string  `json:"nombre"`
	Cantidad       string  `json:"cantidad"`
	PrecioUnitario int64   `json:"precio_unitario"`
	Subtotal       int64   `json:"subtotal"`
	Taken          []int64 `json:"taken"`
}

type testForm struct {
	ID           string      `json:"id"`
	EditID       *int64      `json:"edit_id"`
	Lines        []testLine  `json:"lines"`
	Total        int64       `json:"total"`
	TotalDisplay string      `json:"total_display"`
	CanAddLine   bool        `json:"can_add_line"`
	Notices      notice.View `json:"notices"`
}

func testProducts() []catalog.Product {
	return []catalog.Product{
		{ID: 1, Name: "Proteína", UnitPrice: 25000, StockActual: 10, StockMin: 2, StockMax: 50},
		{ID: 2, Name: "Creatina", UnitPrice: 15000, StockActual: 4, StockMin: 5, StockMax: 20},
	}
}

func ventaRouter(b *mockVentaBackend, src catalog.Source) (http.Handler, *session.Store) {
	if src == nil {
		src = catalog.SourceFunc(func(context.Context) ([]catalog.Product, error) {
			return testProducts(), nil
		})
	}
	store := session.NewStore(0, session.Options{})
	h := handler.NewVentaHandler(b, src, store, validate.DefaultLimits(), nil)
	r := chi.NewRouter()
	r.Route("/ventas", h.RegisterRoutes)
	return r, store
}

func decodeForm(t *testing.T, rr *httptest.ResponseRecorder) testForm {
	t.Helper()
	var f testForm
	if err := json.NewDecoder(rr.Body).Decode(&f); err != nil {
		t.Fatalf("decode form: %v", err)
	}
	return f
}

func openForm(t *testing.T, r http.Handler, user string, body interface{}) testForm {
	t.Helper()
	rr := send(t, r, "POST", "/ventas/forms", body, user)
	wantStatus(t, rr, http.StatusCreated)
	return decodeForm(t, rr)
}

func int64p(v int64) *int64 { return &v }

// --- Form tests ---

func TestOpenForm_StartsWithOneEmptyLine(t *testing.T) {
	r, store := ventaRouter(&mockVentaBackend{}, nil)
	f := openForm(t, r, "u1", nil)

	if len(f.Lines) != 1 {
		t.Fatalf("lines: got %d, want 1", len(f.Lines))
	}
	if f.Lines[0].ProductoID != nil || f.Lines[0].Cantidad != "" {
		t.Errorf("line should be empty: %+v", f.Lines[0])
	}
	if !f.CanAddLine {
		t.Error("expected can_add_line")
	}
	if store.Len() != 1 {
		t.Errorf("sessions: got %d, want 1", store.Len())
	}
}

func TestOpenForm_Unauthenticated(t *testing.T) {
	r, _ := ventaRouter(&mockVentaBackend{}, nil)
	rr := send(t, r, "POST", "/ventas/forms", nil, "")
	wantStatus(t, rr, http.StatusUnauthorized)
}

func TestOpenForm_CatalogUnavailable(t *testing.T) {
	src := catalog.SourceFunc(func(context.Context) ([]catalog.Product, error) {
		return nil, errors.New("connection refused")
	})
	r, store := ventaRouter(&mockVentaBackend{}, src)
	rr := send(t, r, "POST", "/ventas/forms", nil, "u1")

	wantStatus(t, rr, http.StatusBadGateway)
	if got := decodeResponse(t, rr)["error"]; got != "Error al cargar los productos." {
		t.Errorf("error: got %v", got)
	}
	if store.Len() != 0 {
		t.Error("no session should be opened")
	}
}

func TestSaleForm_FullFlow(t *testing.T) {
	b := &mockVentaBackend{result: upstream.Result{ID: int64p(42)}}
	r, store := ventaRouter(b, nil)
	f := openForm(t, r, "u1", nil)
	base := "/ventas/forms/" + f.ID

	rr := send(t, r, "PUT", base+"/lines/0/producto", map[string]int64{"id_producto": 1}, "u1")
	wantStatus(t, rr, http.StatusOK)
	f = decodeForm(t, rr)
	if f.Lines[0].PrecioUnitario != 25000 || f.Lines[0].Nombre != "Proteína" {
		t.Fatalf("line 0: %+v", f.Lines[0])
	}

	rr = send(t, r, "PUT", base+"/lines/0/cantidad", map[string]string{"text": "2a"}, "u1")
	wantStatus(t, rr, http.StatusOK)
	f = decodeForm(t, rr)
	if f.Lines[0].Cantidad != "2" || f.Total != 50000 || f.TotalDisplay != "50.000" {
		t.Fatalf("after quantity: line %+v total %d %q", f.Lines[0], f.Total, f.TotalDisplay)
	}

	rr = send(t, r, "POST", base+"/lines", nil, "u1")
	wantStatus(t, rr, http.StatusOK)
	f = decodeForm(t, rr)
	if len(f.Lines) != 2 {
		t.Fatalf("lines: got %d, want 2", len(f.Lines))
	}
	if len(f.Lines[1].Taken) != 1 || f.Lines[1].Taken[0] != 1 {
		t.Errorf("taken on line 1: %v", f.Lines[1].Taken)
	}

	// Picking the same product again empties the row and posts an error.
	rr = send(t, r, "PUT", base+"/lines/1/producto", map[string]int64{"id_producto": 1}, "u1")
	wantStatus(t, rr, http.StatusOK)
	f = decodeForm(t, rr)
	if f.Lines[1].ProductoID != nil || f.Lines[1].PrecioUnitario != 0 {
		t.Errorf("duplicate row should be reverted: %+v", f.Lines[1])
	}
	if f.Notices.Error != handler.DuplicateProductMessage {
		t.Errorf("notice: got %q", f.Notices.Error)
	}

	rr = send(t, r, "DELETE", base+"/lines/1", nil, "u1")
	wantStatus(t, rr, http.StatusOK)

	rr = send(t, r, "POST", base+"/submit", nil, "u1")
	wantStatus(t, rr, http.StatusOK)
	if got := decodeResponse(t, rr)["message"]; got != "Venta registrada (ID: 42)" {
		t.Errorf("message: got %v", got)
	}

	if len(b.payloads) != 1 {
		t.Fatalf("submissions: got %d, want 1", len(b.payloads))
	}
	want := validate.PayloadItem{ReferenceID: 1, Quantity: 2, UnitPrice: 25000}
	if items := b.payloads[0].Productos; len(items) != 1 || items[0] != want {
		t.Errorf("payload: got %+v", items)
	}
	if b.ids[0] != nil {
		t.Error("new sale should be posted without id")
	}
	if b.tokens[0] != "tok-u1" {
		t.Errorf("token forwarded: got %q", b.tokens[0])
	}
	if store.Len() != 0 {
		t.Error("form should be closed after a successful submit")
	}
}

func TestSubmit_ConcurrentSubmitsForwardOnce(t *testing.T) {
	b := &mockVentaBackend{result: upstream.Result{ID: int64p(7)}, delay: 50 * time.Millisecond}
	r, store := ventaRouter(b, nil)
	f := openForm(t, r, "u1", nil)
	base := "/ventas/forms/" + f.ID
	send(t, r, "PUT", base+"/lines/0/producto", map[string]int64{"id_producto": 1}, "u1")
	send(t, r, "PUT", base+"/lines/0/cantidad", map[string]string{"text": "1"}, "u1")

	codes := make([]int, 2)
	var wg sync.WaitGroup
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = send(t, r, "POST", base+"/submit", nil, "u1").Code
		}(i)
	}
	wg.Wait()

	b.mu.Lock()
	calls := len(b.payloads)
	b.mu.Unlock()
	if calls != 1 {
		t.Fatalf("backend submissions: got %d, want 1", calls)
	}
	ok, gone := 0, 0
	for _, c := range codes {
		switch c {
		case http.StatusOK:
			ok++
		case http.StatusNotFound:
			gone++
		}
	}
	if ok != 1 || gone != 1 {
		t.Errorf("codes: got %v, want one 200 and one 404", codes)
	}
	if store.Len() != 0 {
		t.Error("form should be closed")
	}
}

func TestSubmit_RejectedLocally(t *testing.T) {
	b := &mockVentaBackend{}
	r, _ := ventaRouter(b, nil)
	f := openForm(t, r, "u1", nil)

	rr := send(t, r, "POST", "/ventas/forms/"+f.ID+"/submit", nil, "u1")
	wantStatus(t, rr, http.StatusUnprocessableEntity)

	resp := decodeResponse(t, rr)
	if resp["error"] != "❌ Debes seleccionar el producto en la fila #1." {
		t.Errorf("error: got %v", resp["error"])
	}
	if resp["row"] != float64(1) {
		t.Errorf("row: got %v", resp["row"])
	}
	if len(b.payloads) != 0 {
		t.Error("nothing should reach the backend")
	}
}

func TestSubmit_StockNotEnough(t *testing.T) {
	b := &mockVentaBackend{submitErr: &upstream.APIError{
		Status: http.StatusConflict,
		Code:   enum.CodeStockNotEnough,
		Items:  []upstream.StockItem{{ProductoID: 2, Nombre: "Creatina", Disponible: 4, Solicitado: 6, Deficit: 2}},
	}}
	r, store := ventaRouter(b, nil)
	f := openForm(t, r, "u1", nil)
	base := "/ventas/forms/" + f.ID
	send(t, r, "PUT", base+"/lines/0/producto", map[string]int64{"id_producto": 2}, "u1")
	send(t, r, "PUT", base+"/lines/0/cantidad", map[string]string{"text": "6"}, "u1")

	rr := send(t, r, "POST", base+"/submit", nil, "u1")
	wantStatus(t, rr, http.StatusConflict)

	var resp struct {
		Error           string             `json:"error"`
		Code            string             `json:"code"`
		ViolationsTitle string             `json:"violations_title"`
		Violations      []notice.Violation `json:"violations"`
		Form            testForm           `json:"form"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != enum.CodeStockNotEnough || resp.ViolationsTitle != handler.TitleNotEnough {
		t.Errorf("code/title: %q %q", resp.Code, resp.ViolationsTitle)
	}
	if len(resp.Violations) != 1 || *resp.Violations[0].Resultante != -2 || *resp.Violations[0].Faltan != 2 {
		t.Errorf("violations: %+v", resp.Violations)
	}
	if resp.Form.Notices.ViolationsTitle != handler.TitleNotEnough {
		t.Error("form notices should carry the violations panel")
	}
	if store.Len() != 1 {
		t.Error("form must stay open after a backend rejection")
	}
}

func TestEditSale(t *testing.T) {
	b := &mockVentaBackend{detalle: upstream.VentaDetalle{Productos: []upstream.VentaLinea{
		{ProductoID: 2, Cantidad: decimal.NewNullDecimal(decimal.NewFromInt(3)), PrecioUnitario: decimal.NewNullDecimal(decimal.NewFromInt(14000))},
	}}}
	r, _ := ventaRouter(b, nil)
	f := openForm(t, r, "u1", map[string]int64{"edit_id": 5})

	if f.EditID == nil || *f.EditID != 5 {
		t.Fatalf("edit_id: %v", f.EditID)
	}
	if len(f.Lines) != 1 || f.Lines[0].Cantidad != "3" || f.Lines[0].PrecioUnitario != 14000 {
		t.Fatalf("loaded lines: %+v", f.Lines)
	}

	rr := send(t, r, "POST", "/ventas/forms/"+f.ID+"/submit", nil, "u1")
	wantStatus(t, rr, http.StatusOK)
	if got := decodeResponse(t, rr)["message"]; got != "Venta actualizada" {
		t.Errorf("message: got %v", got)
	}
	if b.ids[0] == nil || *b.ids[0] != 5 {
		t.Error("edit should be sent with the sale id")
	}
}

func TestEditSale_LoadFails(t *testing.T) {
	b := &mockVentaBackend{getErr: &upstream.APIError{Status: http.StatusNotFound}}
	r, store := ventaRouter(b, nil)
	rr := send(t, r, "POST", "/ventas/forms", map[string]int64{"edit_id": 9}, "u1")

	wantStatus(t, rr, http.StatusNotFound)
	if store.Len() != 0 {
		t.Error("no session should be opened")
	}
}

func TestForm_OtherUser(t *testing.T) {
	r, _ := ventaRouter(&mockVentaBackend{}, nil)
	f := openForm(t, r, "u1", nil)

	rr := send(t, r, "GET", "/ventas/forms/"+f.ID, nil, "u2")
	wantStatus(t, rr, http.StatusForbidden)
}

func TestForm_LineOutOfRange(t *testing.T) {
	r, _ := ventaRouter(&mockVentaBackend{}, nil)
	f := openForm(t, r, "u1", nil)

	rr := send(t, r, "PUT", "/ventas/forms/"+f.ID+"/lines/4/cantidad", map[string]string{"text": "1"}, "u1")
	wantStatus(t, rr, http.StatusNotFound)
}

func TestForm_Cancel(t *testing.T) {
	r, store := ventaRouter(&mockVentaBackend{}, nil)
	f := openForm(t, r, "u1", nil)

	rr := send(t, r, "DELETE", "/ventas/forms/"+f.ID, nil, "u1")
	wantStatus(t, rr, http.StatusNoContent)
	if store.Len() != 0 {
		t.Error("form should be discarded")
	}
	rr = send(t, r, "GET", "/ventas/forms/"+f.ID, nil, "u1")
	wantStatus(t, rr, http.StatusNotFound)
}

// --- Stored sale tests ---

func TestListVentas(t *testing.T) {
	b := &mockVentaBackend{}
	r, _ := ventaRouter(b, nil)
	rr := send(t, r, "GET", "/ventas", nil, "u1")

	wantStatus(t, rr, http.StatusOK)
	if rr.Body.String() != "[]\n" {
		t.Errorf("body: got %q", rr.Body.String())
	}
}

func TestDeleteVenta_MaxStockBreach(t *testing.T) {
	max := int64(20)
	b := &mockVentaBackend{deleteErr: &upstream.APIError{
		Status:     http.StatusConflict,
		Code:       enum.CodeMaxStockBreach,
		Violations: []notice.Violation{{ProductoID: 2, Nombre: "Creatina", Maximo: &max}},
	}}
	r, _ := ventaRouter(b, nil)
	rr := send(t, r, "DELETE", "/ventas/7", nil, "u1")

	wantStatus(t, rr, http.StatusConflict)
	resp := decodeResponse(t, rr)
	if resp["violations_title"] != handler.TitleAboveMax {
		t.Errorf("title: got %v", resp["violations_title"])
	}
	rows := resp["violations"].([]interface{})
	if rows[0].(map[string]interface{})["type"] != enum.ViolationAboveMax {
		t.Errorf("row type: %v", rows[0])
	}
	if len(b.deleted) != 1 || b.deleted[0] != 7 {
		t.Errorf("deleted: %v", b.deleted)
	}
}

func TestDeleteVenta_InvalidID(t *testing.T) {
	r, _ := ventaRouter(&mockVentaBackend{}, nil)
	rr := send(t, r, "DELETE", "/ventas/abc", nil, "u1")
	wantStatus(t, rr, http.StatusBadRequest)
}
