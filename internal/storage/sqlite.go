package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/osusume/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS movies (
		position INTEGER PRIMARY KEY,
		id INTEGER NOT NULL UNIQUE,
		title TEXT NOT NULL,
		year INTEGER NOT NULL DEFAULT 0,
		genre TEXT NOT NULL DEFAULT '',
		rating REAL NOT NULL,
		votes INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS genres (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS movie_genres (
		movie_id INTEGER NOT NULL,
		genre_id INTEGER NOT NULL,
		ordinal INTEGER NOT NULL,
		PRIMARY KEY (movie_id, genre_id),
		FOREIGN KEY (movie_id) REFERENCES movies(id) ON DELETE CASCADE,
		FOREIGN KEY (genre_id) REFERENCES genres(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_movies_rating ON movies(rating DESC, votes DESC);
	CREATE INDEX IF NOT EXISTS idx_movie_genres_genre ON movie_genres(genre_id);
	`
	_, err := db.Exec(schema)
	return err
}

// ReplaceMovies deletes the stored catalog and inserts movies in one transaction.
func (s *SQLiteStore) ReplaceMovies(ctx context.Context, movies []models.MovieRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{`DELETE FROM movie_genres`, `DELETE FROM movies`, `DELETE FROM genres`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	insMovie, err := tx.PrepareContext(ctx,
		`INSERT INTO movies (position, id, title, year, genre, rating, votes) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insMovie.Close()
	insGenre, err := tx.PrepareContext(ctx, `INSERT INTO genres (name) VALUES (?)`)
	if err != nil {
		return err
	}
	defer insGenre.Close()
	insLink, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO movie_genres (movie_id, genre_id, ordinal) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insLink.Close()

	genreIDs := make(map[string]int64)
	for i, m := range movies {
		if _, err := insMovie.ExecContext(ctx, i, m.ID, m.Title, m.ReleaseYear, strings.Join(m.Genres, ","), m.Rating, m.VoteCount); err != nil {
			return fmt.Errorf("insert movie %d: %w", m.ID, err)
		}
		for ord, g := range m.Genres {
			gid, ok := genreIDs[g]
			if !ok {
				res, err := insGenre.ExecContext(ctx, g)
				if err != nil {
					return fmt.Errorf("insert genre %q: %w", g, err)
				}
				if gid, err = res.LastInsertId(); err != nil {
					return err
				}
				genreIDs[g] = gid
			}
			if _, err := insLink.ExecContext(ctx, m.ID, gid, ord); err != nil {
				return fmt.Errorf("link movie %d to %q: %w", m.ID, g, err)
			}
		}
	}
	return tx.Commit()
}

// ListMovies returns all movies in the order they were written.
func (s *SQLiteStore) ListMovies(ctx context.Context) ([]models.MovieRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, year, genre, rating, votes FROM movies ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movies []models.MovieRecord
	var raw []string
	index := make(map[int64]int)
	for rows.Next() {
		var m models.MovieRecord
		var genre string
		if err := rows.Scan(&m.ID, &m.Title, &m.ReleaseYear, &genre, &m.Rating, &m.VoteCount); err != nil {
			return nil, err
		}
		m.Genres = []string{}
		index[m.ID] = len(movies)
		movies = append(movies, m)
		raw = append(raw, genre)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	links, err := s.db.QueryContext(ctx,
		`SELECT mg.movie_id, g.name FROM movie_genres mg
		 JOIN genres g ON g.id = mg.genre_id
		 ORDER BY mg.movie_id, mg.ordinal`)
	if err != nil {
		return nil, err
	}
	defer links.Close()
	for links.Next() {
		var id int64
		var name string
		if err := links.Scan(&id, &name); err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			movies[i].Genres = append(movies[i].Genres, name)
		}
	}
	if err := links.Err(); err != nil {
		return nil, err
	}
	// Rows written by other tools may only carry the denormalized column.
	for i := range movies {
		if len(movies[i].Genres) == 0 {
			movies[i].Genres = models.ParseGenres(raw[i])
		}
	}
	return movies, nil
}

// CountMovies returns the number of stored movies.
func (s *SQLiteStore) CountMovies(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies`).Scan(&n)
	return n, err
}

// Genres returns the distinct genre names, sorted.
func (s *SQLiteStore) Genres(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM genres ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
