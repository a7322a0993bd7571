package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/booklane/library-backend/pkg/monitoring"
	"github.com/booklane/library-backend/shared/utils"
	"github.com/booklane/library-backend/v1/models"
	"github.com/booklane/library-backend/v1/services"
	authutils "github.com/booklane/library-backend/v1/utils"
)

// V1Handler handles all routes
type V1Handler struct {
	authService    *services.AuthService
	memberService  *services.MemberService
	catalogService *services.CatalogService
	loanService    *services.LoanService
	fineService    *services.FineService
}

// NewV1Handler creates a new handler wired to all services
func NewV1Handler(db *gorm.DB, minter services.TokenMinter, tokenTTL time.Duration) *V1Handler {
	return &V1Handler{
		authService:    services.NewAuthService(db, minter, tokenTTL),
		memberService:  services.NewMemberService(db),
		catalogService: services.NewCatalogService(db),
		loanService:    services.NewLoanService(db),
		fineService:    services.NewFineService(db),
	}
}

// AuthService exposes the auth service for startup bootstrap
func (h *V1Handler) AuthService() *services.AuthService {
	return h.authService
}

// SetupRoutes configures all routes
func (h *V1Handler) SetupRoutes(mux *http.ServeMux) {
	mux.Handle("/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleLanding)))
	mux.Handle("/register/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleRegister)))
	mux.Handle("/login/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleLogin)))
	mux.Handle("/logout/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleLogout)))

	mux.Handle("/member_dashboard/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleMemberDashboard)))

	mux.Handle("/librarian_dashboard", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleAllCopies)))
	mux.Handle("/available_books/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleAvailableCopies)))

	mux.Handle("/add_book/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleAddBook)))
	mux.Handle("/add_category/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleAddCategory)))
	mux.Handle("/add_author/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleAddAuthor)))
	mux.Handle("/add_copies/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleAddCopies)))

	mux.Handle("/borrow_book/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleBorrow)))
	mux.Handle("/return_book/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleReturn)))
	mux.Handle("/book_overdue/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleOverdue)))
	mux.Handle("/books_issued_by_members/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleOpenLoans)))
	mux.Handle("/book_late/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleFine)))
}

func (h *V1Handler) handleLanding(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		utils.RespondWithError(w, http.StatusNotFound, "Not found")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"service": "library-backend",
		"status":  "ok",
	})
}

func (h *V1Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.RegisterRequest
	if err := utils.ParseJSONRequest(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON input")
		return
	}

	profile, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"profile":    profile,
		"redirectTo": "/login/",
	})
}

func (h *V1Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.LoginRequest
	if err := utils.ParseJSONRequest(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON input")
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *V1Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Sessions live in the bearer token; the client discards it.
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"redirectTo": "/login/",
	})
}

func (h *V1Handler) handleMemberDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Backstop behind the authorization middleware; the dashboard only ever
	// serves the member's own data.
	user, err := authutils.RequireAnyRole(r, models.RoleMember)
	if err != nil {
		utils.RespondWithError(w, http.StatusForbidden, "Access denied")
		return
	}

	profile, err := h.memberService.GetProfileByUserID(r.Context(), user.UserID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	loans, err := h.loanService.MemberLoans(r.Context(), profile.ID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.CreateCollectionResponse(loans, len(loans)))
}

func (h *V1Handler) handleAllCopies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	page, err := h.catalogService.ListCopies(r.Context(), copyFilterFromQuery(r, true), false)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, page)
}

func (h *V1Handler) handleAvailableCopies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	page, err := h.catalogService.ListCopies(r.Context(), copyFilterFromQuery(r, false), true)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, page)
}

func (h *V1Handler) handleAddBook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// The create form needs the category and author lists.
		categories, err := h.catalogService.ListCategories(r.Context())
		if err != nil {
			h.respondServiceError(w, err)
			return
		}
		authors, err := h.catalogService.ListAuthors(r.Context())
		if err != nil {
			h.respondServiceError(w, err)
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"categories": categories,
			"authors":    authors,
		})
	case http.MethodPost:
		var req models.CreateBookRequest
		if err := utils.ParseJSONRequest(r, &req); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON input")
			return
		}
		book, err := h.catalogService.CreateBook(r.Context(), &req)
		if err != nil {
			h.respondServiceError(w, err)
			return
		}
		utils.RespondWithJSON(w, http.StatusCreated, book)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *V1Handler) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		categories, err := h.catalogService.ListCategories(r.Context())
		if err != nil {
			h.respondServiceError(w, err)
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, utils.CreateCollectionResponse(categories, len(categories)))
	case http.MethodPost:
		var req models.CreateCategoryRequest
		if err := utils.ParseJSONRequest(r, &req); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON input")
			return
		}
		category, err := h.catalogService.CreateCategory(r.Context(), &req)
		if err != nil {
			h.respondServiceError(w, err)
			return
		}
		utils.RespondWithJSON(w, http.StatusCreated, category)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *V1Handler) handleAddAuthor(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		authors, err := h.catalogService.ListAuthors(r.Context())
		if err != nil {
			h.respondServiceError(w, err)
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, utils.CreateCollectionResponse(authors, len(authors)))
	case http.MethodPost:
		var req models.CreateAuthorRequest
		if err := utils.ParseJSONRequest(r, &req); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON input")
			return
		}
		author, err := h.catalogService.CreateAuthor(r.Context(), &req)
		if err != nil {
			h.respondServiceError(w, err)
			return
		}
		utils.RespondWithJSON(w, http.StatusCreated, author)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *V1Handler) handleAddCopies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		books, err := h.catalogService.ListBooks(r.Context())
		if err != nil {
			h.respondServiceError(w, err)
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, utils.CreateCollectionResponse(books, len(books)))
	case http.MethodPost:
		var req models.CreateCopyRequest
		if err := utils.ParseJSONRequest(r, &req); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON input")
			return
		}
		copy, err := h.catalogService.CreateCopy(r.Context(), &req)
		if err != nil {
			h.respondServiceError(w, err)
			return
		}
		utils.RespondWithJSON(w, http.StatusCreated, copy)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *V1Handler) handleBorrow(w http.ResponseWriter, r *http.Request) {
	title, ok := extractTitle(w, r.URL.Path, "/borrow_book/")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		// The borrow form needs the member picker, filtered by username.
		members, err := h.memberService.ListMembers(r.Context(), r.URL.Query().Get("name"))
		if err != nil {
			h.respondServiceError(w, err)
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"title":   title,
			"members": members,
		})
	case http.MethodPost:
		var req models.BorrowRequest
		if err := utils.ParseJSONRequest(r, &req); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON input")
			return
		}
		if req.MemberID == 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "memberId is required")
			return
		}

		profile, err := h.memberService.GetProfileByID(r.Context(), req.MemberID)
		if err != nil {
			h.respondServiceError(w, err)
			return
		}

		loan, err := h.loanService.Borrow(r.Context(), req.MemberID, title)
		monitoring.RecordBusinessEvent(r.Context(), "borrow_book", err == nil)
		if err != nil {
			h.respondServiceError(w, err)
			return
		}

		utils.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
			"message":     "Book '" + title + "' issued to " + profile.User.Username + ".",
			"transaction": loan,
			"redirectTo":  "/available_books/",
		})
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *V1Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	title, ok := extractTitle(w, r.URL.Path, "/return_book/")
	if !ok {
		return
	}

	loan, ok := h.resolveLoan(w, r, title)
	if !ok {
		return
	}

	closed, err := h.loanService.ReturnByTransactionID(r.Context(), loan.ID)
	monitoring.RecordBusinessEvent(r.Context(), "return_book", err == nil)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Book '" + title + "' returned successfully.",
		"transaction": closed,
		"redirectTo":  refererOrDefault(r, "/books_issued_by_members/"),
	})
}

func (h *V1Handler) handleOverdue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	loans, err := h.loanService.ListOverdue(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.CreateCollectionResponse(loans, len(loans)))
}

func (h *V1Handler) handleOpenLoans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	loans, err := h.loanService.ListOpenLoans(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.CreateCollectionResponse(loans, len(loans)))
}

func (h *V1Handler) handleFine(w http.ResponseWriter, r *http.Request) {
	title, ok := extractTitle(w, r.URL.Path, "/book_late/")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		loan, ok := h.resolveLoan(w, r, title)
		if !ok {
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, h.fineService.Quote(loan))
	case http.MethodPost:
		loan, ok := h.resolveLoan(w, r, title)
		if !ok {
			return
		}

		fine, err := h.fineService.RecordFine(r.Context(), loan.ID)
		monitoring.RecordBusinessEvent(r.Context(), "record_fine", err == nil)
		if err != nil {
			h.respondServiceError(w, err)
			return
		}

		utils.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
			"message":    "Fine recorded successfully.",
			"fine":       fine,
			"redirectTo": refererOrDefault(r, "/book_overdue/"),
		})
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// resolveLoan locates the open loan a request addresses: an explicit
// transaction id wins, otherwise the title resolver runs with the optional
// member disambiguator. Ambiguity answers with the candidate list so the
// operator can retry against a specific transaction.
func (h *V1Handler) resolveLoan(w http.ResponseWriter, r *http.Request, title string) (*models.BorrowTransaction, bool) {
	if raw := r.URL.Query().Get("transaction"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid transaction id")
			return nil, false
		}

		loan, err := h.loanService.GetOpenLoan(r.Context(), uint(id))
		if err != nil {
			h.respondServiceError(w, err)
			return nil, false
		}
		return loan, true
	}

	loan, err := h.loanService.ResolveOpenLoan(r.Context(), title, r.URL.Query().Get("member"))
	if err != nil {
		if errors.Is(err, services.ErrAmbiguousLoan) {
			candidates, listErr := h.loanService.OpenLoanCandidates(r.Context(), title)
			if listErr != nil {
				h.respondServiceError(w, listErr)
				return nil, false
			}
			utils.RespondWithJSON(w, http.StatusConflict, map[string]interface{}{
				"error":      err.Error(),
				"candidates": candidates,
			})
			return nil, false
		}
		h.respondServiceError(w, err)
		return nil, false
	}
	return loan, true
}

// respondServiceError maps service errors onto the HTTP error kinds
func (h *V1Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrDuplicateUsername):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrBorrowLimitExceeded):
		utils.RespondWithError(w, http.StatusUnprocessableEntity, "This member already has 3 books issued.")
	case errors.Is(err, services.ErrNoAvailableCopy):
		utils.RespondWithError(w, http.StatusUnprocessableEntity, "No available copy for this book.")
	case errors.Is(err, services.ErrNoOpenLoan):
		utils.RespondWithError(w, http.StatusNotFound, "No borrowed transaction found.")
	case errors.Is(err, services.ErrMemberNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrAmbiguousLoan):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("Request failed", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// copyFilterFromQuery reads the catalog filters from query parameters.
// The availability filter only exists on the staff view.
func copyFilterFromQuery(r *http.Request, allowStatus bool) services.CopyFilter {
	query := r.URL.Query()
	filter := services.CopyFilter{
		Query:      query.Get("q"),
		CategoryID: parseUintParam(query.Get("category")),
		AuthorID:   parseUintParam(query.Get("author")),
		Page:       int(parseUintParam(query.Get("page"))),
	}
	if allowStatus {
		if status := models.CopyStatus(query.Get("availability")); status.IsValid() {
			filter.Status = status
		}
	}
	return filter
}

func parseUintParam(raw string) uint {
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(value)
}

// extractTitle pulls the book title segment out of a parameterized path
func extractTitle(w http.ResponseWriter, path, prefix string) (string, bool) {
	title := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if title == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Book title is required")
		return "", false
	}
	return title, true
}

func refererOrDefault(r *http.Request, fallback string) string {
	if referer := r.Referer(); referer != "" {
		return referer
	}
	return fallback
}
