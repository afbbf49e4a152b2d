package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/confhub/confbot/internal/domain"
)

// PostgresStore implements Store over a pgx connection pool. It is selected
// when the configured DSN carries a postgres:// scheme; deployments that
// outgrow the embedded SQLite file move here without code changes.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and ensures the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id_user BIGSERIAL PRIMARY KEY,
			chat_id BIGINT NOT NULL UNIQUE,
			username TEXT NOT NULL DEFAULT '',
			favorite_list_ids TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id_event BIGSERIAL PRIMARY KEY,
			url_event TEXT NOT NULL DEFAULT '',
			name_event TEXT NOT NULL,
			date_event TEXT NOT NULL DEFAULT '',
			time_event TEXT NOT NULL DEFAULT '',
			location_event TEXT NOT NULL DEFAULT '',
			description_event TEXT NOT NULL DEFAULT '',
			host_event TEXT NOT NULL DEFAULT '',
			speakers_event TEXT NOT NULL DEFAULT '',
			tags_event TEXT NOT NULL DEFAULT '',
			sponsors TEXT NOT NULL DEFAULT '',
			urls_in_event TEXT NOT NULL DEFAULT '',
			agenda TEXT NOT NULL DEFAULT '',
			date_add TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			date_update TIMESTAMPTZ,
			type_update TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_added ON events(date_add)`,
		`CREATE INDEX IF NOT EXISTS idx_events_updated ON events(date_update)`,
		`CREATE TABLE IF NOT EXISTS event_lists (
			id_list BIGSERIAL PRIMARY KEY,
			id_user BIGINT NOT NULL REFERENCES users(id_user),
			visibility TEXT NOT NULL,
			name_list TEXT NOT NULL,
			secret_key BIGINT NOT NULL,
			event_ids TEXT NOT NULL DEFAULT '',
			UNIQUE (id_user, visibility)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_event_lists_key ON event_lists(secret_key)`,
		`CREATE TABLE IF NOT EXISTS logs (
			id_log BIGSERIAL PRIMARY KEY,
			chat_id BIGINT NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			message_text TEXT NOT NULL DEFAULT '',
			response_text TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS feedback (
			id_feedback BIGSERIAL PRIMARY KEY,
			chat_id BIGINT NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			feedback_text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// ---- Users ----

func (s *PostgresStore) UpsertUser(ctx context.Context, chatID int64, username string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (chat_id, username) VALUES ($1, $2)
		 ON CONFLICT (chat_id) DO UPDATE SET username = EXCLUDED.username
		 RETURNING id_user, chat_id, username, favorite_list_ids, created_at`,
		chatID, username)
	return scanPgUser(row)
}

func (s *PostgresStore) GetUserByChatID(ctx context.Context, chatID int64) (*domain.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id_user, chat_id, username, favorite_list_ids, created_at
		 FROM users WHERE chat_id = $1`, chatID)
	return scanPgUser(row)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id_user, chat_id, username, favorite_list_ids, created_at
		 FROM users WHERE id_user = $1`, id)
	return scanPgUser(row)
}

func scanPgUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.ChatID, &u.Username, &u.FavoriteListIDs, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id_user, chat_id, username, favorite_list_ids, created_at FROM users`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.ChatID, &u.Username, &u.FavoriteListIDs, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) SetFavoriteListIDs(ctx context.Context, userID int64, favoriteListIDs string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET favorite_list_ids = $1 WHERE id_user = $2`, favoriteListIDs, userID)
	if err != nil {
		return fmt.Errorf("failed to update favorites: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ---- Events ----

func (s *PostgresStore) InsertEvent(ctx context.Context, event *domain.Event) (int64, error) {
	addedAt := event.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}
	var updatedAt *time.Time
	if event.UpdatedAt != nil {
		t := event.UpdatedAt.UTC()
		updatedAt = &t
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO events (url_event, name_event, date_event, time_event,
			location_event, description_event, host_event, speakers_event,
			tags_event, sponsors, urls_in_event, agenda, date_add, date_update, type_update)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id_event`,
		event.URL, event.Name, event.Date, event.Time, event.Location,
		event.Description, event.Host, event.Speakers, event.Tags,
		event.Sponsors, event.RelatedURLs, event.Agenda,
		addedAt, updatedAt, event.UpdateType).Scan(&event.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	return event.ID, nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	events, err := s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id_event = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, domain.ErrNotFound
	}
	return &events[0], nil
}

func (s *PostgresStore) GetEventsByIDs(ctx context.Context, ids []int64) ([]domain.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	fetched, err := s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id_event = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]domain.Event, len(fetched))
	for _, ev := range fetched {
		byID[ev.ID] = ev
	}
	ordered := make([]domain.Event, 0, len(ids))
	for _, id := range ids {
		if ev, ok := byID[id]; ok {
			ordered = append(ordered, ev)
		}
	}
	return ordered, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return s.queryEvents(ctx, `SELECT `+eventColumns+` FROM events ORDER BY id_event`)
}

func (s *PostgresStore) FindEventsByTags(ctx context.Context, tags []string) ([]domain.Event, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	conds := make([]string, 0, len(tags))
	args := make([]any, 0, len(tags))
	for i, tag := range tags {
		conds = append(conds, fmt.Sprintf("tags_event ILIKE $%d", i+1))
		args = append(args, "%"+tag+"%")
	}
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE `+strings.Join(conds, " OR ")+` ORDER BY id_event`,
		args...)
}

func (s *PostgresStore) FindMainEventsByDay(ctx context.Context, day string) ([]domain.Event, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE name_event LIKE $1 AND date_event LIKE $2 ORDER BY id_event`,
		"%"+mainEventMarker+"%", "%"+day+"%")
}

func (s *PostgresStore) FindMainEventsByLocation(ctx context.Context, location string) ([]domain.Event, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE name_event LIKE $1 AND location_event LIKE $2 ORDER BY id_event`,
		"%"+mainEventMarker+"%", "%"+location+"%")
}

func (s *PostgresStore) EventsAddedSince(ctx context.Context, cutoff time.Time) ([]domain.Event, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE date_add >= $1 ORDER BY id_event`,
		cutoff.UTC())
}

func (s *PostgresStore) EventsUpdatedSince(ctx context.Context, cutoff time.Time) ([]domain.Event, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE type_update LIKE '%update%' AND date_update >= $1 ORDER BY id_event`,
		cutoff.UTC())
}

func (s *PostgresStore) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		var updatedAt *time.Time
		err := rows.Scan(&ev.ID, &ev.URL, &ev.Name, &ev.Date, &ev.Time,
			&ev.Location, &ev.Description, &ev.Host, &ev.Speakers, &ev.Tags,
			&ev.Sponsors, &ev.RelatedURLs, &ev.Agenda, &ev.AddedAt,
			&updatedAt, &ev.UpdateType)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.UpdatedAt = updatedAt
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ---- Event lists ----

func (s *PostgresStore) CreateList(ctx context.Context, list *domain.EventList) (int64, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO event_lists (id_user, visibility, name_list, secret_key, event_ids)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id_list`,
		list.UserID, string(list.Visibility), list.Name, list.SecretKey, list.EventIDs).Scan(&list.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to create list: %w", err)
	}
	return list.ID, nil
}

func (s *PostgresStore) GetList(ctx context.Context, listID int64) (*domain.EventList, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+listColumns+` FROM event_lists WHERE id_list = $1`, listID)
	return scanPgList(row)
}

func (s *PostgresStore) GetListByUser(ctx context.Context, userID int64, visibility domain.Visibility) (*domain.EventList, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+listColumns+` FROM event_lists WHERE id_user = $1 AND visibility = $2`,
		userID, string(visibility))
	return scanPgList(row)
}

func (s *PostgresStore) GetListBySecretKey(ctx context.Context, key int64) (*domain.EventList, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+listColumns+` FROM event_lists WHERE secret_key = $1 AND visibility = $2`,
		key, string(domain.VisibilityPrivate))
	return scanPgList(row)
}

func scanPgList(row pgx.Row) (*domain.EventList, error) {
	var l domain.EventList
	var visibility string
	err := row.Scan(&l.ID, &l.UserID, &visibility, &l.Name, &l.SecretKey, &l.EventIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan list: %w", err)
	}
	l.Visibility = domain.Visibility(visibility)
	return &l, nil
}

func (s *PostgresStore) ListPrivateLists(ctx context.Context) ([]domain.EventList, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listColumns+` FROM event_lists WHERE visibility = $1`,
		string(domain.VisibilityPrivate))
	if err != nil {
		return nil, fmt.Errorf("failed to list private lists: %w", err)
	}
	defer rows.Close()

	var lists []domain.EventList
	for rows.Next() {
		var l domain.EventList
		var visibility string
		if err := rows.Scan(&l.ID, &l.UserID, &visibility, &l.Name, &l.SecretKey, &l.EventIDs); err != nil {
			return nil, fmt.Errorf("failed to scan list: %w", err)
		}
		l.Visibility = domain.Visibility(visibility)
		lists = append(lists, l)
	}
	return lists, rows.Err()
}

func (s *PostgresStore) SetListEventIDs(ctx context.Context, listID int64, eventIDs string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE event_lists SET event_ids = $1 WHERE id_list = $2`, eventIDs, listID)
	if err != nil {
		return fmt.Errorf("failed to update list members: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ---- Diagnostics ----

func (s *PostgresStore) LogInteraction(ctx context.Context, entry *domain.InteractionLog) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO logs (chat_id, username, message_text, response_text, error_message)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ChatID, entry.Username, entry.Message, entry.Response, entry.Error)
	if err != nil {
		return fmt.Errorf("failed to log interaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddFeedback(ctx context.Context, fb *domain.Feedback) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO feedback (chat_id, username, feedback_text) VALUES ($1, $2, $3)`,
		fb.ChatID, fb.Username, fb.Text)
	if err != nil {
		return fmt.Errorf("failed to add feedback: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) RequestCountsByUser(ctx context.Context) (map[int64]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT chat_id, COUNT(*) FROM logs GROUP BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int64)
	for rows.Next() {
		var chatID, count int64
		if err := rows.Scan(&chatID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan request count: %w", err)
		}
		counts[chatID] = count
	}
	return counts, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
