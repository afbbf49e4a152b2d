package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/confhub/confbot/internal/domain"
)

// mainEventMarker tags main-conference agenda rows in the events table; the
// scraper prefixes their names with it.
const mainEventMarker = "[IMPACT]"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and ensures the schema.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id_user INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER NOT NULL UNIQUE,
			username TEXT NOT NULL DEFAULT '',
			favorite_list_ids TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id_event INTEGER PRIMARY KEY AUTOINCREMENT,
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
			date_add DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			date_update DATETIME,
			type_update TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_added ON events(date_add)`,
		`CREATE INDEX IF NOT EXISTS idx_events_updated ON events(date_update)`,
		`CREATE TABLE IF NOT EXISTS event_lists (
			id_list INTEGER PRIMARY KEY AUTOINCREMENT,
			id_user INTEGER NOT NULL,
			visibility TEXT NOT NULL,
			name_list TEXT NOT NULL,
			secret_key INTEGER NOT NULL,
			event_ids TEXT NOT NULL DEFAULT '',
			UNIQUE (id_user, visibility),
			FOREIGN KEY (id_user) REFERENCES users(id_user)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_event_lists_key ON event_lists(secret_key)`,
		`CREATE TABLE IF NOT EXISTS logs (
			id_log INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			message_text TEXT NOT NULL DEFAULT '',
			response_text TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS feedback (
			id_feedback INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			feedback_text TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---- Users ----

func (s *SQLiteStore) UpsertUser(ctx context.Context, chatID int64, username string) (*domain.User, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (chat_id, username, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (chat_id) DO UPDATE SET username = excluded.username`,
		chatID, username, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return s.GetUserByChatID(ctx, chatID)
}

func (s *SQLiteStore) GetUserByChatID(ctx context.Context, chatID int64) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id_user, chat_id, username, favorite_list_ids, created_at
		 FROM users WHERE chat_id = ?`, chatID)
	return scanUser(row)
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id_user, chat_id, username, favorite_list_ids, created_at
		 FROM users WHERE id_user = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.ChatID, &u.Username, &u.FavoriteListIDs, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
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

func (s *SQLiteStore) SetFavoriteListIDs(ctx context.Context, userID int64, favoriteListIDs string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET favorite_list_ids = ? WHERE id_user = ?`, favoriteListIDs, userID)
	if err != nil {
		return fmt.Errorf("failed to update favorites: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ---- Events ----

const eventColumns = `id_event, url_event, name_event, date_event, time_event,
	location_event, description_event, host_event, speakers_event, tags_event,
	sponsors, urls_in_event, agenda, date_add, date_update, type_update`

func (s *SQLiteStore) InsertEvent(ctx context.Context, event *domain.Event) (int64, error) {
	addedAt := event.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (url_event, name_event, date_event, time_event,
			location_event, description_event, host_event, speakers_event,
			tags_event, sponsors, urls_in_event, agenda, date_add, date_update, type_update)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.URL, event.Name, event.Date, event.Time, event.Location,
		event.Description, event.Host, event.Speakers, event.Tags,
		event.Sponsors, event.RelatedURLs, event.Agenda,
		addedAt, nullableTime(event.UpdatedAt), event.UpdateType)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read event id: %w", err)
	}
	event.ID = id
	return id, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func (s *SQLiteStore) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id_event = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, domain.ErrNotFound
	}
	return &events[0], nil
}

func (s *SQLiteStore) GetEventsByIDs(ctx context.Context, ids []int64) ([]domain.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	unique := make(map[int64]struct{}, len(ids))
	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		if _, ok := unique[id]; ok {
			continue
		}
		unique[id] = struct{}{}
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id_event IN (`+strings.Join(placeholders, ",")+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	fetched, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}

	// Re-assemble in the caller's order, repeating rows for repeated ids.
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

func (s *SQLiteStore) ListEvents(ctx context.Context) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY id_event`)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *SQLiteStore) FindEventsByTags(ctx context.Context, tags []string) ([]domain.Event, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	conds := make([]string, 0, len(tags))
	args := make([]any, 0, len(tags))
	for _, tag := range tags {
		conds = append(conds, "LOWER(tags_event) LIKE LOWER(?)")
		args = append(args, "%"+tag+"%")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE `+strings.Join(conds, " OR ")+` ORDER BY id_event`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find events by tags: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *SQLiteStore) FindMainEventsByDay(ctx context.Context, day string) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE name_event LIKE ? AND date_event LIKE ? ORDER BY id_event`,
		"%"+mainEventMarker+"%", "%"+day+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to find main events by day: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *SQLiteStore) FindMainEventsByLocation(ctx context.Context, location string) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE name_event LIKE ? AND location_event LIKE ? ORDER BY id_event`,
		"%"+mainEventMarker+"%", "%"+location+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to find main events by location: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *SQLiteStore) EventsAddedSince(ctx context.Context, cutoff time.Time) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE date_add >= ? ORDER BY id_event`,
		cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query added events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *SQLiteStore) EventsUpdatedSince(ctx context.Context, cutoff time.Time) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE type_update LIKE '%update%' AND date_update >= ? ORDER BY id_event`,
		cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query updated events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *SQLiteStore) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		var updatedAt sql.NullTime
		err := rows.Scan(&ev.ID, &ev.URL, &ev.Name, &ev.Date, &ev.Time,
			&ev.Location, &ev.Description, &ev.Host, &ev.Speakers, &ev.Tags,
			&ev.Sponsors, &ev.RelatedURLs, &ev.Agenda, &ev.AddedAt,
			&updatedAt, &ev.UpdateType)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if updatedAt.Valid {
			t := updatedAt.Time
			ev.UpdatedAt = &t
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ---- Event lists ----

const listColumns = `id_list, id_user, visibility, name_list, secret_key, event_ids`

func (s *SQLiteStore) CreateList(ctx context.Context, list *domain.EventList) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO event_lists (id_user, visibility, name_list, secret_key, event_ids)
		 VALUES (?, ?, ?, ?, ?)`,
		list.UserID, string(list.Visibility), list.Name, list.SecretKey, list.EventIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to create list: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read list id: %w", err)
	}
	list.ID = id
	return id, nil
}

func (s *SQLiteStore) GetList(ctx context.Context, listID int64) (*domain.EventList, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+listColumns+` FROM event_lists WHERE id_list = ?`, listID)
	return scanList(row)
}

func (s *SQLiteStore) GetListByUser(ctx context.Context, userID int64, visibility domain.Visibility) (*domain.EventList, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+listColumns+` FROM event_lists WHERE id_user = ? AND visibility = ?`,
		userID, string(visibility))
	return scanList(row)
}

func (s *SQLiteStore) GetListBySecretKey(ctx context.Context, key int64) (*domain.EventList, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+listColumns+` FROM event_lists WHERE secret_key = ? AND visibility = ?`,
		key, string(domain.VisibilityPrivate))
	return scanList(row)
}

func scanList(row *sql.Row) (*domain.EventList, error) {
	var l domain.EventList
	var visibility string
	err := row.Scan(&l.ID, &l.UserID, &visibility, &l.Name, &l.SecretKey, &l.EventIDs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan list: %w", err)
	}
	l.Visibility = domain.Visibility(visibility)
	return &l, nil
}

func (s *SQLiteStore) ListPrivateLists(ctx context.Context) ([]domain.EventList, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+listColumns+` FROM event_lists WHERE visibility = ?`,
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

func (s *SQLiteStore) SetListEventIDs(ctx context.Context, listID int64, eventIDs string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE event_lists SET event_ids = ? WHERE id_list = ?`, eventIDs, listID)
	if err != nil {
		return fmt.Errorf("failed to update list members: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ---- Diagnostics ----

func (s *SQLiteStore) LogInteraction(ctx context.Context, entry *domain.InteractionLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (chat_id, username, message_text, response_text, error_message)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ChatID, entry.Username, entry.Message, entry.Response, entry.Error)
	if err != nil {
		return fmt.Errorf("failed to log interaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddFeedback(ctx context.Context, fb *domain.Feedback) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (chat_id, username, feedback_text) VALUES (?, ?, ?)`,
		fb.ChatID, fb.Username, fb.Text)
	if err != nil {
		return fmt.Errorf("failed to add feedback: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) RequestCountsByUser(ctx context.Context) (map[int64]int64, error) {
	rows, err := s.db.QueryContext(ctx,
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

var _ Store = (*SQLiteStore)(nil)
