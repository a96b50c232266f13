package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"
)

// Titler generates a conversation title from the first user question.
// Best-effort: any failure falls back to a prefix of the question itself.
type Titler interface {
	GenerateTitle(ctx context.Context, userQuestion string) (string, error)
}

const titleFallbackLen = 50

// Store persists conversations as one serialized blob per id. The embedded
// *sql.DB is the process-wide connection pool and is shared by every
// in-flight turn.
//
// AppendMessage is a plain read-modify-write with no locking: two concurrent
// appends to the same conversation can race, and the later write wins,
// silently discarding the earlier append. That is an accepted semantic of
// the system (single writer per conversation in practice), not something the
// store tries to prevent.
type Store struct {
	db     *sql.DB
	titler Titler
	logger *zap.Logger
}

func NewStore(dataSourceName string, titler Titler, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db, titler: titler, logger: logger}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS conversations (
        id TEXT PRIMARY KEY, -- UUID
        data TEXT NOT NULL   -- serialized Conversation blob
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// Create allocates a new conversation with an empty message sequence and
// returns its id and title. The title comes from the language model when
// possible, otherwise from a truncated prefix of the triggering question.
// A persistence failure here is logged and swallowed: the caller still gets
// a usable id, the history for it is simply not durable.
func (s *Store) Create(ctx context.Context, userQuestion, fileName string, csvHeaders []string) (string, string) {
	id := uuid.NewString()

	title := truncateTitle(userQuestion)
	if s.titler != nil {
		if generated, err := s.titler.GenerateTitle(ctx, userQuestion); err != nil {
			s.logger.Warn("title generation failed, using fallback",
				zap.String("conversationID", id), zap.Error(err))
		} else if generated != "" {
			title = generated
		}
	}

	conv := &Conversation{
		Title:      &title,
		FileName:   fileName,
		CSVHeaders: csvHeaders,
		Messages:   []Message{},
		CreatedAt:  time.Now(),
	}
	if err := s.insert(ctx, id, conv); err != nil {
		s.logger.Error("failed to persist new conversation, proceeding without durability",
			zap.String("conversationID", id), zap.Error(err))
	}
	return id, title
}

// Load returns the conversation for id, or nil when it does not exist. A
// read failure is demoted to nil as well: the caller cannot distinguish a
// missing conversation from an unreachable store, and the turn continues
// either way.
func (s *Store) Load(ctx context.Context, id string) *Conversation {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM conversations WHERE id = ?", id).Scan(&data)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Error("failed to load conversation, treating as not found",
				zap.String("conversationID", id), zap.Error(err))
		}
		return nil
	}

	var conv Conversation
	if err := json.Unmarshal([]byte(data), &conv); err != nil {
		s.logger.Error("failed to decode conversation blob, treating as not found",
			zap.String("conversationID", id), zap.Error(err))
		return nil
	}
	conv.ID = id
	return &conv
}

// AppendMessage loads the conversation, appends msg and writes the whole
// blob back. If the conversation does not exist yet it is created, seeded
// only with msg and any fallback metadata. Every failure is logged and
// swallowed so the conversational flow never fails on persistence.
func (s *Store) AppendMessage(ctx context.Context, id string, msg Message, meta *FallbackMetadata) {
	if msg.Content == "" {
		s.logger.Warn("refusing to append empty message", zap.String("conversationID", id))
		return
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	conv := s.Load(ctx, id)
	if conv == nil {
		seeded := &Conversation{
			Messages:  []Message{msg},
			CreatedAt: time.Now(),
		}
		if meta != nil {
			seeded.FileName = meta.FileName
			seeded.CSVHeaders = meta.CSVHeaders
		}
		if err := s.insert(ctx, id, seeded); err != nil {
			s.logger.Error("failed to create conversation for append, message lost",
				zap.String("conversationID", id), zap.Error(err))
		}
		return
	}

	conv.Messages = append(conv.Messages, msg)
	if err := s.update(ctx, id, conv); err != nil {
		s.logger.Error("failed to persist appended message, message lost",
			zap.String("conversationID", id), zap.Error(err))
	}
}

// List returns summaries of every stored conversation, newest first. Rows
// whose blob fails to decode are skipped with a warning.
func (s *Store) List(ctx context.Context) ([]ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, data FROM conversations")
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var summaries []ConversationSummary
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		var conv Conversation
		if err := json.Unmarshal([]byte(data), &conv); err != nil {
			s.logger.Warn("skipping undecodable conversation blob",
				zap.String("conversationID", id), zap.Error(err))
			continue
		}
		summaries = append(summaries, ConversationSummary{
			ID:           id,
			Title:        conv.Title,
			FileName:     conv.FileName,
			MessageCount: len(conv.Messages),
			CreatedAt:    conv.CreatedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func (s *Store) insert(ctx context.Context, id string, conv *Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	_, err = s.db.ExecContext(ctx, "INSERT INTO conversations (id, data) VALUES (?, ?)", id, string(data))
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, id string, conv *Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	_, err = s.db.ExecContext(ctx, "UPDATE conversations SET data = ? WHERE id = ?", string(data), id)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return nil
}

func truncateTitle(userQuestion string) string {
	title := strings.TrimSpace(userQuestion)
	runes := []rune(title)
	if len(runes) > titleFallbackLen {
		title = string(runes[:titleFallbackLen])
	}
	return title
}
