package handler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/fileflow/internal/auth"
	"github.com/dukerupert/fileflow/internal/entitlement"
	"github.com/dukerupert/fileflow/internal/flash"
	"github.com/dukerupert/fileflow/internal/metrics"
	"github.com/dukerupert/fileflow/internal/middleware"
	"github.com/dukerupert/fileflow/internal/password"
	"github.com/dukerupert/fileflow/internal/store"
)

type registerForm struct {
	Email           string `validate:"required,email,max=254"`
	Username        string `validate:"required,max=32"`
	Password        string `validate:"required,min=8"`
	PasswordConfirm string `validate:"required,eqfield=Password"`
}

// fieldNames maps form struct fields to their input names.
var fieldNames = map[string]string{
	"Email":           "email",
	"Username":        "username",
	"Password":        "password",
	"PasswordConfirm": "password_confirm",
}

type AccountHandler struct {
	users         *store.UserStore
	sessions      *store.SessionStore
	files         *store.FileStore
	resolver      *entitlement.Resolver
	metrics       *metrics.Metrics
	validate      *validator.Validate
	secureCookies bool
	view
}

func NewAccountHandler(
	users *store.UserStore,
	sessions *store.SessionStore,
	files *store.FileStore,
	resolver *entitlement.Resolver,
	m *metrics.Metrics,
	secureCookies bool,
	templates map[string]*template.Template,
	flashes *flash.Store,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		users:         users,
		sessions:      sessions,
		files:         files,
		resolver:      resolver,
		metrics:       m,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		secureCookies: secureCookies,
		view:          view{templates: templates, flash: flashes, logger: logger},
	}
}

func (h *AccountHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	if auth.User(r.Context()) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, r, "register.html", map[string]any{
		"Title":  "Регистрация",
		"Form":   registerForm{},
		"Errors": map[string]string{},
	})
}

// Register creates the account and signs the new user in.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	form := registerForm{
		Email:           strings.TrimSpace(r.FormValue("email")),
		Username:        strings.TrimSpace(r.FormValue("username")),
		Password:        r.FormValue("password"),
		PasswordConfirm: r.FormValue("password_confirm"),
	}

	errs := h.validateRegistration(form)
	if len(errs) == 0 {
		hash, err := password.Hash(form.Password)
		if err != nil {
			h.logger.Error("hash password", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		user, err := h.users.Create(store.CreateUserParams{
			Email:        form.Email,
			Username:     form.Username,
			PasswordHash: hash,
		})
		switch {
		case errors.Is(err, store.ErrDuplicate):
			// Lost a race with another registration.
			errs["email"] = "Пользователь с таким email или именем уже существует."
		case err != nil:
			h.logger.Error("create user", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		default:
			h.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
			if err := h.startSession(w, user.ID); err != nil {
				h.logger.Error("create session", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			h.notify(w, r, "/", flash.Success, "Добро пожаловать, %s!", user.Username)
			return
		}
	}

	form.Password, form.PasswordConfirm = "", ""
	h.renderStatus(w, r, http.StatusUnprocessableEntity, "register.html", map[string]any{
		"Title":  "Регистрация",
		"Form":   form,
		"Errors": errs,
	})
}

func (h *AccountHandler) validateRegistration(form registerForm) map[string]string {
	errs := map[string]string{}
	if err := h.validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			errs["email"] = "Некорректные данные формы."
			return errs
		}
		for _, fe := range verrs {
			name := fieldNames[fe.Field()]
			if _, seen := errs[name]; !seen {
				errs[name] = fieldMessage(fe)
			}
		}
		return errs
	}

	if u, err := h.users.GetByEmail(form.Email); err != nil {
		h.logger.Error("lookup email", "error", err)
	} else if u != nil {
		errs["email"] = "Этот email уже зарегистрирован."
	}
	if u, err := h.users.GetByUsername(form.Username); err != nil {
		h.logger.Error("lookup username", "error", err)
	} else if u != nil {
		errs["username"] = "Это имя пользователя уже занято."
	}
	return errs
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Обязательное поле."
	case "email":
		return "Введите корректный email."
	case "max":
		return "Не более " + fe.Param() + " символов."
	case "min":
		return "Не менее " + fe.Param() + " символов."
	case "eqfield":
		return "Пароли не совпадают."
	default:
		return "Некорректное значение."
	}
}

func (h *AccountHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if auth.User(r.Context()) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, r, "login.html", map[string]any{
		"Title": "Вход",
		"Error": "",
		"Login": "",
		"Next":  r.URL.Query().Get("next"),
	})
}

// Login authenticates by email or username.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	login := strings.TrimSpace(r.FormValue("login"))
	pass := r.FormValue("password")
	next := r.FormValue("next")

	fail := func() {
		h.metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		h.renderStatus(w, r, http.StatusUnauthorized, "login.html", map[string]any{
			"Title": "Вход",
			"Error": "Неверный логин или пароль.",
			"Login": login,
			"Next":  next,
		})
	}

	if login == "" || pass == "" {
		fail()
		return
	}
	user, err := h.users.GetByLogin(login)
	if err != nil {
		h.logger.Error("lookup user", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if user == nil || !user.IsActive || !password.Verify(user.PasswordHash, pass) {
		fail()
		return
	}

	if err := h.startSession(w, user.ID); err != nil {
		h.logger.Error("create session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	h.logger.Info("user logged in", "user_id", user.ID)

	if !isValidRedirect(next) {
		next = "/"
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// Logout destroys the session.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok && ac.SessionID != 0 {
		if err := h.sessions.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}

func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user := auth.User(r.Context())
	status, err := h.resolver.Resolve(user)
	if err != nil {
		h.logger.Error("resolve subscription", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	files, err := h.files.ListByUser(user.ID)
	if err != nil {
		h.logger.Error("list files", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "profile.html", map[string]any{
		"Title":     "Профиль",
		"Status":    status,
		"FileCount": len(files),
	})
}

func (h *AccountHandler) startSession(w http.ResponseWriter, userID int64) error {
	sess, err := h.sessions.Create(userID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(store.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// isValidRedirect accepts only same-site absolute paths. Browsers read a
// backslash as a slash, so "/\host" is as offsite as "//host".
func isValidRedirect(path string) bool {
	return strings.HasPrefix(path, "/") &&
		!strings.HasPrefix(path, "//") &&
		!strings.Contains(path, "://") &&
		!strings.Contains(path, "\\")
}
