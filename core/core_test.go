package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/graveldb/gravel/logger"
	"github.com/graveldb/gravel/schema"
)

type testUser struct {
	ID     int64
	Email  string
	Name   string
	Active bool
	Joined time.Time
	Posts  []*testPost
}

type testPost struct {
	ID       int64
	AuthorID *int64
	Title    string
	Views    int64
	Author   *testUser
	Tags     []*testTag
}

type testTag struct {
	ID    int64
	Label string
}

type userCodec struct{}

func (userCodec) DecodeRow(row schema.Row) (any, error) {
	u := &testUser{}
	if v, ok := row["id"].(int64); ok {
		u.ID = v
	}
	if v, ok := row["email"].(string); ok {
		u.Email = v
	}
	if v, ok := row["name"].(string); ok {
		u.Name = v
	}
	if v, ok := row["active"].(int64); ok {
		u.Active = v != 0
	}
	if v, ok := row["joined"].(string); ok {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, err
		}
		u.Joined = t
	}
	return u, nil
}

func (userCodec) EncodeRow(entity any) (schema.Row, error) {
	u, ok := entity.(*testUser)
	if !ok {
		return nil, fmt.Errorf("not a user: %T", entity)
	}
	row := schema.Row{
		"id":     u.ID,
		"email":  u.Email,
		"name":   u.Name,
		"active": u.Active,
	}
	if !u.Joined.IsZero() {
		row["joined"] = u.Joined
	} else {
		row["joined"] = nil
	}
	return row, nil
}

type postCodec struct{}

func (postCodec) DecodeRow(row schema.Row) (any, error) {
	p := &testPost{}
	if v, ok := row["id"].(int64); ok {
		p.ID = v
	}
	if v, ok := row["author_id"].(int64); ok {
		p.AuthorID = &v
	}
	if v, ok := row["title"].(string); ok {
		p.Title = v
	}
	if v, ok := row["views"].(int64); ok {
		p.Views = v
	}
	return p, nil
}

func (postCodec) EncodeRow(entity any) (schema.Row, error) {
	p, ok := entity.(*testPost)
	if !ok {
		return nil, fmt.Errorf("not a post: %T", entity)
	}
	row := schema.Row{
		"id":    p.ID,
		"title": p.Title,
		"views": p.Views,
	}
	if p.AuthorID != nil {
		row["author_id"] = *p.AuthorID
	} else {
		row["author_id"] = nil
	}
	return row, nil
}

type tagCodec struct{}

func (tagCodec) DecodeRow(row schema.Row) (any, error) {
	t := &testTag{}
	if v, ok := row["id"].(int64); ok {
		t.ID = v
	}
	if v, ok := row["label"].(string); ok {
		t.Label = v
	}
	// Lets tests provoke row-level load failures on demand.
	if t.Label == "undecodable" {
		return nil, fmt.Errorf("tag %d refuses to decode", t.ID)
	}
	return t, nil
}

func (tagCodec) EncodeRow(entity any) (schema.Row, error) {
	t, ok := entity.(*testTag)
	if !ok {
		return nil, fmt.Errorf("not a tag: %T", entity)
	}
	return schema.Row{"id": t.ID, "label": t.Label}, nil
}

func testRegistry() *schema.Registry {
	reg := schema.NewRegistry()

	users := schema.NewTable("user", "users",
		schema.Int("id").PrimaryKey().AutoIncrement(),
		schema.Text("email"),
		schema.Text("name").Nullable(),
		schema.Bool("active").Default(true),
		schema.Time("joined").Nullable(),
	).WithCodec(userCodec{}).
		WithRelationship("posts", schema.HasMany("post", "author_id",
			schema.Many(func(u *testUser, ps []*testPost) { u.Posts = ps })))

	posts := schema.NewTable("post", "posts",
		schema.Int("id").PrimaryKey().AutoIncrement(),
		schema.Int("author_id").Nullable(),
		schema.Text("title"),
		schema.Int("views").Default(0),
	).WithCodec(postCodec{}).
		WithForeignKey("author_id", "users").
		WithRelationship("author", schema.BelongsTo("user", "author_id",
			schema.One(func(p *testPost, u *testUser) { p.Author = u }))).
		WithRelationship("tags", schema.ManyToMany("tag", "post_tags", "post_id", "tag_id",
			schema.Many(func(p *testPost, ts []*testTag) { p.Tags = ts })))

	tags := schema.NewTable("tag", "tags",
		schema.Int("id").PrimaryKey().AutoIncrement(),
		schema.Text("label"),
	).WithCodec(tagCodec{})

	joins := schema.NewTable("post_tag", "post_tags",
		schema.Int("post_id"),
		schema.Int("tag_id"),
	)

	reg.Register(users)
	reg.Register(posts)
	reg.Register(tags)
	reg.Register(joins)
	return reg
}

func silentLogger() logger.Logger {
	l := logger.NewStdLogger()
	l.SetLevel(logger.LogLevelSilent)
	return l
}

// setupTestDB opens a fresh in-memory database with the given registry and
// creates its tables. One connection keeps the in-memory database alive and
// shared across every statement.
func setupTestDB(t *testing.T, reg *schema.Registry) *DB {
	t.Helper()
	db, err := Open("sqlite", ":memory:", reg, &Options{
		MaxOpenConns: 1,
		Logger:       silentLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrator().CreateTables(context.Background()))
	return db
}

func int64p(v int64) *int64 {
	return &v
}
