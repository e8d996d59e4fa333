// Package sqldriver implements storage.Driver on top of ent's dialect-aware
// SQL builder and driver. It is database-agnostic and is embedded by the
// sqlite and postgres drivers.
package sqldriver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/chatrelay/pkg/storage"
)

const (
	conversationsTable = "conversations"
	turnsTable         = "turns"
	credentialsTable   = "credentials"
)

var (
	conversationColumns = []string{"id", "owner_id", "title", "created_at", "updated_at"}
	turnColumns         = []string{"id", "conversation_id", "owner_id", "role", "content", "created_at"}
	credentialColumns   = []string{"id", "owner_id", "provider", "label", "secret", "config", "shared", "created_at"}
)

// Driver provides storage operations over an ent SQL driver.
type Driver struct {
	drv *entsql.Driver
	now func() time.Time
}

// New wraps drv and creates the schema if it does not exist yet.
func New(ctx context.Context, drv *entsql.Driver) (*Driver, error) {
	d := &Driver{
		drv: drv,
		now: func() time.Time { return time.Now().UTC() },
	}

	for _, stmt := range schema(drv.Dialect()) {
		if err := drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return d, nil
}

func (d *Driver) dialect() *entsql.DialectBuilder {
	return entsql.Dialect(d.drv.Dialect())
}

func (d *Driver) CreateConversation(ctx context.Context, ownerID, title string) (*storage.Conversation, error) {
	if ownerID == "" {
		return nil, errors.New("conversation owner is required")
	}

	now := d.now()
	id, err := d.insert(ctx, d.dialect().Insert(conversationsTable).
		Columns("owner_id", "title", "created_at", "updated_at").
		Values(ownerID, title, now, now))
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return &storage.Conversation{
		ID:        id,
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (d *Driver) GetConversation(ctx context.Context, id int64) (*storage.Conversation, error) {
	convs, err := d.queryConversations(ctx, d.dialect().Select(conversationColumns...).
		From(entsql.Table(conversationsTable)).
		Where(entsql.EQ("id", id)).
		Limit(1))
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return nil, storage.NotFoundError{Kind: "conversation", ID: id}
	}

	return convs[0], nil
}

func (d *Driver) ListConversations(ctx context.Context, ownerID string) ([]*storage.Conversation, error) {
	return d.queryConversations(ctx, d.dialect().Select(conversationColumns...).
		From(entsql.Table(conversationsTable)).
		Where(entsql.EQ("owner_id", ownerID)).
		OrderBy(entsql.Desc("updated_at"), entsql.Desc("id")))
}

func (d *Driver) RenameConversation(ctx context.Context, id int64, title string) error {
	return d.update(ctx, "conversation", id, d.dialect().Update(conversationsTable).
		Set("title", title).
		Set("updated_at", d.now()).
		Where(entsql.EQ("id", id)))
}

func (d *Driver) TouchConversation(ctx context.Context, id int64) error {
	return d.update(ctx, "conversation", id, d.dialect().Update(conversationsTable).
		Set("updated_at", d.now()).
		Where(entsql.EQ("id", id)))
}

// DeleteConversation removes the turns and the conversation in one
// transaction.
func (d *Driver) DeleteConversation(ctx context.Context, id int64) error {
	tx, err := d.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	q, args := d.dialect().Delete(turnsTable).Where(entsql.EQ("conversation_id", id)).Query()
	if err := tx.Exec(ctx, q, args, nil); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to delete turns: %w", err)
	}

	var res sql.Result
	q, args = d.dialect().Delete(conversationsTable).Where(entsql.EQ("id", id)).Query()
	if err := tx.Exec(ctx, q, args, &res); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if n == 0 {
		_ = tx.Rollback()
		return storage.NotFoundError{Kind: "conversation", ID: id}
	}

	return tx.Commit()
}

func (d *Driver) AppendTurn(ctx context.Context, conversationID int64, ownerID, role, content string) (int64, error) {
	id, err := d.insert(ctx, d.dialect().Insert(turnsTable).
		Columns("conversation_id", "owner_id", "role", "content", "created_at").
		Values(conversationID, ownerID, role, content, d.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to append turn: %w", err)
	}

	return id, nil
}

func (d *Driver) ListTurns(ctx context.Context, conversationID int64) ([]*storage.Turn, error) {
	q, args := d.dialect().Select(turnColumns...).
		From(entsql.Table(turnsTable)).
		Where(entsql.EQ("conversation_id", conversationID)).
		OrderBy(entsql.Asc("id")).
		Query()

	var rows entsql.Rows
	if err := d.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	turns := make([]*storage.Turn, 0)
	for rows.Next() {
		t := &storage.Turn{}
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.OwnerID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, t)
	}

	return turns, rows.Err()
}

func (d *Driver) CreateCredential(ctx context.Context, c *storage.Credential) (int64, error) {
	if c == nil {
		return 0, errors.New("cannot store nil credential")
	}

	var owner any
	if c.OwnerID != "" {
		owner = c.OwnerID
	}

	now := d.now()
	id, err := d.insert(ctx, d.dialect().Insert(credentialsTable).
		Columns("owner_id", "provider", "label", "secret", "config", "shared", "created_at").
		Values(owner, c.Provider, c.Label, c.Secret, c.Config, c.Shared, now))
	if err != nil {
		return 0, fmt.Errorf("failed to create credential: %w", err)
	}

	c.ID = id
	c.CreatedAt = now
	return id, nil
}

func (d *Driver) GetCredential(ctx context.Context, id int64) (*storage.Credential, error) {
	return d.firstCredential(ctx, storage.NotFoundError{Kind: "credential", ID: id},
		entsql.EQ("id", id))
}

func (d *Driver) LatestSharedCredential(ctx context.Context, provider string) (*storage.Credential, error) {
	return d.firstCredential(ctx, storage.NotFoundError{Kind: "credential"},
		entsql.And(entsql.EQ("shared", true), entsql.EQ("provider", provider)))
}

func (d *Driver) LatestOwnedCredential(ctx context.Context, ownerID, provider string) (*storage.Credential, error) {
	if ownerID == "" {
		return nil, storage.NotFoundError{Kind: "credential"}
	}
	return d.firstCredential(ctx, storage.NotFoundError{Kind: "credential"},
		entsql.And(entsql.EQ("owner_id", ownerID), entsql.EQ("provider", provider)))
}

func (d *Driver) ListCredentials(ctx context.Context, ownerID string) ([]*storage.Credential, error) {
	return d.queryCredentials(ctx, d.dialect().Select(credentialColumns...).
		From(entsql.Table(credentialsTable)).
		Where(entsql.Or(entsql.EQ("shared", true), entsql.EQ("owner_id", ownerID))).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")))
}

func (d *Driver) DeleteCredential(ctx context.Context, id int64) error {
	var res sql.Result
	q, args := d.dialect().Delete(credentialsTable).Where(entsql.EQ("id", id)).Query()
	if err := d.drv.Exec(ctx, q, args, &res); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.NotFoundError{Kind: "credential", ID: id}
	}

	return nil
}

// DB returns the underlying database handle.
func (d *Driver) DB() *sql.DB {
	return d.drv.DB()
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.drv.Close()
}

// insert runs the insert and returns the generated id.
func (d *Driver) insert(ctx context.Context, ib *entsql.InsertBuilder) (int64, error) {
	q, args := ib.Returning("id").Query()

	var rows entsql.Rows
	if err := d.drv.Query(ctx, q, args, &rows); err != nil {
		return 0, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, errors.New("insert returned no id")
	}

	var id int64
	if err := rows.Scan(&id); err != nil {
		return 0, err
	}

	return id, rows.Err()
}

// update runs the update and maps zero affected rows to a NotFoundError.
func (d *Driver) update(ctx context.Context, kind string, id int64, ub *entsql.UpdateBuilder) error {
	var res sql.Result
	q, args := ub.Query()
	if err := d.drv.Exec(ctx, q, args, &res); err != nil {
		return fmt.Errorf("failed to update %s: %w", kind, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.NotFoundError{Kind: kind, ID: id}
	}

	return nil
}

func (d *Driver) queryConversations(ctx context.Context, sel *entsql.Selector) ([]*storage.Conversation, error) {
	q, args := sel.Query()

	var rows entsql.Rows
	if err := d.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	convs := make([]*storage.Conversation, 0)
	for rows.Next() {
		c := &storage.Conversation{}
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, c)
	}

	return convs, rows.Err()
}

func (d *Driver) firstCredential(ctx context.Context, notFound error, where *entsql.Predicate) (*storage.Credential, error) {
	creds, err := d.queryCredentials(ctx, d.dialect().Select(credentialColumns...).
		From(entsql.Table(credentialsTable)).
		Where(where).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Limit(1))
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		return nil, notFound
	}

	return creds[0], nil
}

func (d *Driver) queryCredentials(ctx context.Context, sel *entsql.Selector) ([]*storage.Credential, error) {
	q, args := sel.Query()

	var rows entsql.Rows
	if err := d.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	creds := make([]*storage.Credential, 0)
	for rows.Next() {
		var owner sql.NullString
		c := &storage.Credential{}
		if err := rows.Scan(&c.ID, &owner, &c.Provider, &c.Label, &c.Secret, &c.Config, &c.Shared, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		c.OwnerID = owner.String
		creds = append(creds, c)
	}

	return creds, rows.Err()
}
