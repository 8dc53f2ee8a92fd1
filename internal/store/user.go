package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/fileflow/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var active, staff, superuser int
	err := scanner.Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash,
		&active, &staff, &superuser, &u.Plan, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.IsActive = active != 0
	u.IsStaff = staff != 0
	u.IsSuperuser = superuser != 0
	return &u, nil
}

const userCols = `id, email, username, password_hash, is_active, is_staff, is_superuser, plan, created_at, updated_at`

// CreateUserParams holds the fields accepted when inserting a user.
type CreateUserParams struct {
	Email        string
	Username     string
	PasswordHash string
	IsStaff      bool
	IsSuperuser  bool
}

// Create inserts an active user on the "none" plan. A taken email or
// username returns ErrDuplicate.
func (s *UserStore) Create(p CreateUserParams) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (email, username, password_hash, is_staff, is_superuser) VALUES (?, ?, ?, ?, ?)`,
		strings.ToLower(p.Email), p.Username, p.PasswordHash, boolInt(p.IsStaff), boolInt(p.IsSuperuser),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert user: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, strings.ToLower(email))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByUsername(username string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

// GetByLogin looks the user up by email when the identifier contains an "@",
// and by username otherwise.
func (s *UserStore) GetByLogin(identifier string) (*model.User, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return s.GetByEmail(identifier)
	}
	return s.GetByUsername(identifier)
}

func (s *UserStore) SetPlan(id int64, plan model.Plan) error {
	_, err := s.db.Exec(`UPDATE users SET plan = ? WHERE id = ?`, plan, id)
	if err != nil {
		return fmt.Errorf("set user plan: %w", err)
	}
	return nil
}

func (s *UserStore) SetPassword(id int64, hash string) error {
	_, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("set user password: %w", err)
	}
	return nil
}

func (s *UserStore) SetActive(id int64, active bool) error {
	_, err := s.db.Exec(`UPDATE users SET is_active = ? WHERE id = ?`, boolInt(active), id)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	return nil
}
