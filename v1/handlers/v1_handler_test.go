package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/booklane/library-backend/v1/middleware"
	"github.com/booklane/library-backend/v1/models"
	"github.com/booklane/library-backend/v1/testutils"
)

// setupTestServer builds the full handler chain over an in-memory database:
// JWT authentication, role authorization and the routed handlers.
func setupTestServer(t *testing.T) (http.Handler, *V1Handler, *gorm.DB) {
	t.Helper()

	db := testutils.SetupTestDB(t)

	jwtMW := middleware.NewJWTAuthMiddleware(middleware.JWTAuthConfig{
		Secret: []byte("test-secret"),
		Issuer: "library-backend",
	})
	authzMW := middleware.NewAuthorizationMiddleware()

	handler := NewV1Handler(db, jwtMW, time.Hour)

	mux := http.NewServeMux()
	handler.SetupRoutes(mux)

	chain := jwtMW.AuthenticateJWT(authzMW.AuthorizeRequest(mux))
	return chain, handler, db
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func registerMember(t *testing.T, handler http.Handler, username string) uint {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/register/", "", models.RegisterRequest{
		Username: username,
		Password: "s3cret",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	profile := body["profile"].(map[string]interface{})
	return uint(profile["id"].(float64))
}

func login(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/login/", "", models.LoginRequest{
		Username: username,
		Password: password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody(t, rec)["token"].(string)
}

func loginAdmin(t *testing.T, handler http.Handler, h *V1Handler) string {
	t.Helper()
	require.NoError(t, h.AuthService().EnsureAdmin(t.Context(), "root", "adminpass"))
	return login(t, handler, "root", "adminpass")
}

func seedTitleWithCopies(t *testing.T, handler http.Handler, token, title string, copies int) {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/add_category/", token,
		models.CreateCategoryRequest{Name: "Fiction-" + title})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	categoryID := uint(decodeBody(t, rec)["id"].(float64))

	rec = doJSON(t, handler, http.MethodPost, "/add_author/", token,
		models.CreateAuthorRequest{Name: "Author of " + title})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	authorID := uint(decodeBody(t, rec)["id"].(float64))

	rec = doJSON(t, handler, http.MethodPost, "/add_book/", token, models.CreateBookRequest{
		Title:      title,
		ISBN:       "isbn-" + title,
		CategoryID: categoryID,
		AuthorIDs:  []uint{authorID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bookID := uint(decodeBody(t, rec)["id"].(float64))

	for i := 0; i < copies; i++ {
		rec = doJSON(t, handler, http.MethodPost, "/add_copies/", token, models.CreateCopyRequest{
			BookID:  bookID,
			Barcode: fmt.Sprintf("BC-%s-%d", title, i),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func TestAuthenticationAndAuthorizationGates(t *testing.T) {
	handler, h, _ := setupTestServer(t)

	// No token
	rec := doJSON(t, handler, http.MethodGet, "/available_books/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Member token on a staff endpoint
	registerMember(t, handler, "alice")
	memberToken := login(t, handler, "alice", "s3cret")
	rec = doJSON(t, handler, http.MethodGet, "/available_books/", memberToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Staff token on the member dashboard
	adminToken := loginAdmin(t, handler, h)
	rec = doJSON(t, handler, http.MethodGet, "/member_dashboard/", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Matching roles pass
	rec = doJSON(t, handler, http.MethodGet, "/available_books/", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, handler, http.MethodGet, "/member_dashboard/", memberToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginRedirectsByRole(t *testing.T) {
	handler, h, _ := setupTestServer(t)

	registerMember(t, handler, "alice")
	rec := doJSON(t, handler, http.MethodPost, "/login/", "", models.LoginRequest{Username: "alice", Password: "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/member_dashboard/", decodeBody(t, rec)["redirectTo"])

	require.NoError(t, h.AuthService().EnsureAdmin(t.Context(), "root", "adminpass"))
	rec = doJSON(t, handler, http.MethodPost, "/login/", "", models.LoginRequest{Username: "root", Password: "adminpass"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/librarian_dashboard", decodeBody(t, rec)["redirectTo"])

	rec = doJSON(t, handler, http.MethodPost, "/login/", "", models.LoginRequest{Username: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBorrowReturnFlow(t *testing.T) {
	handler, h, _ := setupTestServer(t)

	memberID := registerMember(t, handler, "alice")
	memberToken := login(t, handler, "alice", "s3cret")
	adminToken := loginAdmin(t, handler, h)

	seedTitleWithCopies(t, handler, adminToken, "Dune", 1)

	// The borrow form lists members filtered by name
	rec := doJSON(t, handler, http.MethodGet, "/borrow_book/Dune/?name=ali", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	members := decodeBody(t, rec)["members"].([]interface{})
	require.Len(t, members, 1)

	// Issuing for an unknown member fails before any copy is touched
	rec = doJSON(t, handler, http.MethodPost, "/borrow_book/Dune/", adminToken, models.BorrowRequest{MemberID: 9999})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/borrow_book/Dune/", adminToken, models.BorrowRequest{MemberID: memberID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, decodeBody(t, rec)["message"], "issued to alice")

	// The copy is gone from the available view
	rec = doJSON(t, handler, http.MethodGet, "/available_books/", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeBody(t, rec)["totalCount"])

	// A second borrow of the same title has no copy left
	rec = doJSON(t, handler, http.MethodPost, "/borrow_book/Dune/", adminToken, models.BorrowRequest{MemberID: memberID})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// The member sees the open loan on their dashboard
	rec = doJSON(t, handler, http.MethodGet, "/member_dashboard/", memberToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"])

	// The loan shows up on the issued list
	rec = doJSON(t, handler, http.MethodGet, "/books_issued_by_members/", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"])

	rec = doJSON(t, handler, http.MethodPost, "/return_book/Dune/", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Returning again finds no open loan
	rec = doJSON(t, handler, http.MethodPost, "/return_book/Dune/", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The copy is available again
	rec = doJSON(t, handler, http.MethodGet, "/available_books/", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["totalCount"])
}

func TestBorrowLimitOverHTTP(t *testing.T) {
	handler, h, _ := setupTestServer(t)

	memberID := registerMember(t, handler, "alice")
	adminToken := loginAdmin(t, handler, h)

	for i := 0; i < models.MaxOpenLoans+1; i++ {
		seedTitleWithCopies(t, handler, adminToken, fmt.Sprintf("Book%d", i), 1)
	}

	for i := 0; i < models.MaxOpenLoans; i++ {
		rec := doJSON(t, handler, http.MethodPost, fmt.Sprintf("/borrow_book/Book%d/", i), adminToken,
			models.BorrowRequest{MemberID: memberID})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := doJSON(t, handler, http.MethodPost, fmt.Sprintf("/borrow_book/Book%d/", models.MaxOpenLoans), adminToken,
		models.BorrowRequest{MemberID: memberID})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAmbiguousReturnNeedsDisambiguation(t *testing.T) {
	handler, h, _ := setupTestServer(t)

	aliceID := registerMember(t, handler, "alice")
	bobID := registerMember(t, handler, "bob")
	adminToken := loginAdmin(t, handler, h)

	seedTitleWithCopies(t, handler, adminToken, "Dune", 2)

	for _, id := range []uint{aliceID, bobID} {
		rec := doJSON(t, handler, http.MethodPost, "/borrow_book/Dune/", adminToken, models.BorrowRequest{MemberID: id})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	// Two open loans for the title: a bare return is ambiguous
	rec := doJSON(t, handler, http.MethodPost, "/return_book/Dune/", adminToken, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	candidates := decodeBody(t, rec)["candidates"].([]interface{})
	assert.Len(t, candidates, 2)

	// The member query parameter narrows it down
	rec = doJSON(t, handler, http.MethodPost, "/return_book/Dune/?member=bob", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// One open loan left, the bare return now succeeds
	rec = doJSON(t, handler, http.MethodPost, "/return_book/Dune/", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReturnByExplicitTransactionID(t *testing.T) {
	handler, h, _ := setupTestServer(t)

	aliceID := registerMember(t, handler, "alice")
	bobID := registerMember(t, handler, "bob")
	adminToken := loginAdmin(t, handler, h)

	seedTitleWithCopies(t, handler, adminToken, "Dune", 2)

	var transactionIDs []uint
	for _, id := range []uint{aliceID, bobID} {
		rec := doJSON(t, handler, http.MethodPost, "/borrow_book/Dune/", adminToken, models.BorrowRequest{MemberID: id})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		txn := decodeBody(t, rec)["transaction"].(map[string]interface{})
		transactionIDs = append(transactionIDs, uint(txn["id"].(float64)))
	}

	rec := doJSON(t, handler, http.MethodPost,
		fmt.Sprintf("/return_book/Dune/?transaction=%d", transactionIDs[0]), adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// An unknown transaction id is a miss even while open loans exist
	rec = doJSON(t, handler, http.MethodPost, "/return_book/Dune/?transaction=99999", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFineQuoteAndRecording(t *testing.T) {
	handler, h, db := setupTestServer(t)

	memberID := registerMember(t, handler, "alice")
	adminToken := loginAdmin(t, handler, h)

	seedTitleWithCopies(t, handler, adminToken, "Dune", 1)

	rec := doJSON(t, handler, http.MethodPost, "/borrow_book/Dune/", adminToken, models.BorrowRequest{MemberID: memberID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Four days late
	due := models.Today(time.Now()).AddDate(0, 0, -4)
	require.NoError(t, db.Model(&models.BorrowTransaction{}).
		Where("status = ?", models.LoanStatusBorrowed).
		Update("due_date", due).Error)

	rec = doJSON(t, handler, http.MethodGet, "/book_late/Dune/", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	quote := decodeBody(t, rec)
	assert.Equal(t, float64(4), quote["daysLate"])
	assert.Equal(t, float64(4*models.FinePerDay), quote["amount"])

	rec = doJSON(t, handler, http.MethodPost, "/book_late/Dune/", adminToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	fine := decodeBody(t, rec)["fine"].(map[string]interface{})
	assert.Equal(t, float64(4*models.FinePerDay), fine["amount"])
	assert.Equal(t, false, fine["paid"])

	// Recording the fine closed the loan and freed the copy
	rec = doJSON(t, handler, http.MethodGet, "/available_books/", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["totalCount"])

	rec = doJSON(t, handler, http.MethodGet, "/book_late/Dune/", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOverdueListOverHTTP(t *testing.T) {
	handler, h, db := setupTestServer(t)

	memberID := registerMember(t, handler, "alice")
	adminToken := loginAdmin(t, handler, h)

	seedTitleWithCopies(t, handler, adminToken, "Dune", 1)
	seedTitleWithCopies(t, handler, adminToken, "Cosmos", 1)

	for _, title := range []string{"Dune", "Cosmos"} {
		rec := doJSON(t, handler, http.MethodPost, "/borrow_book/"+title+"/", adminToken,
			models.BorrowRequest{MemberID: memberID})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	// Only Dune goes overdue
	var duneLoan models.BorrowTransaction
	require.NoError(t, db.
		Joins("JOIN book_copies ON book_copies.id = borrow_transactions.book_copy_id").
		Joins("JOIN books ON books.id = book_copies.book_id").
		Where("books.title = ?", "Dune").
		First(&duneLoan).Error)
	require.NoError(t, db.Model(&models.BorrowTransaction{}).
		Where("id = ?", duneLoan.ID).
		Update("due_date", models.Today(time.Now()).AddDate(0, 0, -1)).Error)

	rec := doJSON(t, handler, http.MethodGet, "/book_overdue/", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
	items := body["items"].([]interface{})
	assert.Equal(t, "Dune", items[0].(map[string]interface{})["title"])
}

func TestRegisterDuplicateOverHTTP(t *testing.T) {
	handler, _, _ := setupTestServer(t)

	registerMember(t, handler, "alice")
	rec := doJSON(t, handler, http.MethodPost, "/register/", "", models.RegisterRequest{
		Username: "alice",
		Password: "other",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogoutRedirectsToLogin(t *testing.T) {
	handler, _, _ := setupTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/logout/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/login/", decodeBody(t, rec)["redirectTo"])
}
