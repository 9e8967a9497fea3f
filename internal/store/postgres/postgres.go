package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/knowsee/knowsee/internal/store"
)

type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

var openDB = sql.Open

func New(conn string) (*PostgresStore, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db, now: time.Now}, nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func verifySchema(ctx context.Context, db *sql.DB) error {
	required := []string{
		"session",
		"user",
		"Message_v2",
	}
	for _, table := range required {
		var regclass sql.NullString
		if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)", fmt.Sprintf(`public.%q`, table)).Scan(&regclass); err != nil {
			return err
		}
		if !regclass.Valid {
			return fmt.Errorf("database schema missing: %s table not found (run infra/migrations/001_init.sql)", table)
		}
	}
	return nil
}

func (p *PostgresStore) GetSession(ctx context.Context, token string) (*store.Session, error) {
	const query = `
		SELECT s."token",
			s."userId",
			s."expiresAt",
			u."name",
			u."email",
			u."emailVerified"
		FROM "session" s
		JOIN "user" u ON u."id" = s."userId"
		WHERE s."token" = $1
	`
	var session store.Session
	err := p.db.QueryRowContext(ctx, query, token).Scan(
		&session.Token,
		&session.UserID,
		&session.ExpiresAt,
		&session.User.Name,
		&session.User.Email,
		&session.User.EmailVerified,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if session.Expired(p.now()) {
		return nil, nil
	}
	session.User.ID = session.UserID
	return &session, nil
}

func (p *PostgresStore) SaveMessage(ctx context.Context, msg store.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = p.now().UTC()
	}
	parts := []byte(msg.Parts)
	if len(parts) == 0 {
		parts = []byte("[]")
	}
	const query = `
		INSERT INTO "Message_v2" ("id", "chatId", "role", "parts", "createdAt")
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ("id") DO UPDATE SET "parts" = EXCLUDED."parts"
	`
	_, err := p.db.ExecContext(ctx, query, msg.ID, msg.ChatID, msg.Role, parts, msg.CreatedAt)
	return err
}

func (p *PostgresStore) ListMessages(ctx context.Context, chatID string) ([]store.Message, error) {
	const query = `
		SELECT "id", "chatId", "role", "parts", "createdAt"
		FROM "Message_v2"
		WHERE "chatId" = $1
		ORDER BY "createdAt" ASC
	`
	rows, err := p.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	messages := []store.Message{}
	for rows.Next() {
		var msg store.Message
		var parts []byte
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Role, &parts, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Parts = parts
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}
