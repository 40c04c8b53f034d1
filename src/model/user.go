package model

import (
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var ErrSessionNotFound = errors.New("session not found, expired, or blocked")

// User is a dashboard account. Hermes has a single seller, so users are operators.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Password    string    `json:"-"`
	IsAdmin     bool      `json:"is_admin"`
	LoginCount  int       `json:"login_count"`
	LastLoginAt NullTime  `json:"last_login_at"`
	LastLoginIP string    `json:"last_login_ip"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	MfaSecret   string    `json:"-"`
	MfaEnabled  bool      `json:"mfa_enabled"`
}

// NullTime is an alias for sql.NullTime for better JSON handling if needed.
type NullTime sql.NullTime

func (nt NullTime) MarshalJSON() ([]byte, error) {
	if !nt.Valid {
		return []byte("null"), nil
	}
	return nt.Time.MarshalJSON()
}

type Session struct {
	ID           int       `json:"id"`
	UserID       int64     `json:"user_id"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	UserAgent    string    `json:"user_agent"`
	ClientIP     string    `json:"client_ip"`
	IsBlocked    bool      `json:"is_blocked"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) HashPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
}

func (u *User) CreateUser(db *sql.DB) error {
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	query := `
	INSERT INTO users (username, email, password, is_admin, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`
	res, err := db.Exec(query, u.Username, u.Email, u.Password, u.IsAdmin, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

const userColumns = `id, username, email, password, is_admin, login_count, last_login_at, last_login_ip,
	       created_at, updated_at, mfa_secret, mfa_enabled`

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var lastLoginIP, mfaSecret sql.NullString
	var lastLoginAt sql.NullTime

	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.Password, &user.IsAdmin,
		&user.LoginCount, &lastLoginAt, &lastLoginIP,
		&user.CreatedAt, &user.UpdatedAt,
		&mfaSecret, &user.MfaEnabled,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}

	user.LastLoginAt = NullTime(lastLoginAt)
	user.LastLoginIP = lastLoginIP.String
	user.MfaSecret = mfaSecret.String
	return &user, nil
}

func GetUserByID(db *sql.DB, id int64) (*User, error) {
	return scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func GetUserByEmail(db *sql.DB, email string) (*User, error) {
	return scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// CountUsers is used to decide whether the configured admin must be seeded.
func CountUsers(db *sql.DB) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// RecordLogin bumps the login counter and stores the client address.
func (u *User) RecordLogin(db *sql.DB, clientIP string) error {
	now := time.Now()
	_, err := db.Exec(`
	UPDATE users
	SET login_count = login_count + 1, last_login_at = ?, last_login_ip = ?, updated_at = ?
	WHERE id = ?`, now, clientIP, now, u.ID)
	if err != nil {
		return err
	}
	u.LoginCount++
	u.LastLoginAt = NullTime{Time: now, Valid: true}
	u.LastLoginIP = clientIP
	u.UpdatedAt = now
	return nil
}

// UpdateMfaSecret guarda o segredo TOTP temporariamente (ou permanentemente)
func (u *User) UpdateMfaSecret(db *sql.DB, secret string) error {
	u.MfaSecret = secret
	u.UpdatedAt = time.Now()

	_, err := db.Exec(`UPDATE users SET mfa_secret = ?, updated_at = ? WHERE id = ?`, u.MfaSecret, u.UpdatedAt, u.ID)
	return err
}

// UpdateMfaEnabled ativa ou desativa o MFA
func (u *User) UpdateMfaEnabled(db *sql.DB, enabled bool) error {
	u.MfaEnabled = enabled
	u.UpdatedAt = time.Now()

	_, err := db.Exec(`UPDATE users SET mfa_enabled = ?, updated_at = ? WHERE id = ?`, u.MfaEnabled, u.UpdatedAt, u.ID)
	return err
}

func CreateSession(db *sql.DB, session *Session) error {
	query := `
	INSERT INTO sessions (user_id, token, refresh_token, user_agent, client_ip, is_blocked, expires_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	session.CreatedAt = time.Now()
	res, err := db.Exec(query,
		session.UserID,
		session.Token,
		session.RefreshToken,
		session.UserAgent,
		session.ClientIP,
		session.IsBlocked,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	session.ID = int(id)
	return nil
}

func getSession(db *sql.DB, column, value string) (*Session, error) {
	query := `
	SELECT id, user_id, token, refresh_token, user_agent, client_ip, is_blocked, expires_at, created_at
	FROM sessions
	WHERE ` + column + ` = ? AND is_blocked = FALSE AND expires_at > ?`

	var session Session
	var userAgent, clientIP sql.NullString
	err := db.QueryRow(query, value, time.Now()).Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.RefreshToken,
		&userAgent,
		&clientIP,
		&session.IsBlocked,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	session.UserAgent = userAgent.String
	session.ClientIP = clientIP.String
	return &session, nil
}

func GetSessionByToken(db *sql.DB, token string) (*Session, error) {
	return getSession(db, "token", token)
}

func GetSessionByRefreshToken(db *sql.DB, refreshToken string) (*Session, error) {
	return getSession(db, "refresh_token", refreshToken)
}

func DeleteSessionByToken(db *sql.DB, token string) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	return err
}

func DeleteSessionByRefreshToken(db *sql.DB, refreshToken string) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE refresh_token = ?`, refreshToken)
	return err
}

func (u *User) UpdatePassword(db *sql.DB, hashedPassword string) error {
	u.Password = hashedPassword
	u.UpdatedAt = time.Now()

	_, err := db.Exec(`UPDATE users SET password = ?, updated_at = ? WHERE id = ?`, u.Password, u.UpdatedAt, u.ID)
	return err
}

// DeleteOtherSessions removes every session of the user except the one holding keepToken.
func DeleteOtherSessions(db *sql.DB, userID int64, keepToken string) (int64, error) {
	res, err := db.Exec(`DELETE FROM sessions WHERE user_id = ? AND token != ?`, userID, keepToken)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
