// Package storage persists extracted recipes, tags, and folders in Postgres.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"RecipeSnap/internal/domain"
	"RecipeSnap/internal/ports"
)

// PostgresRepository implements ports.RecipeRepository on database/sql.
type PostgresRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.RecipeRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Save stores a recipe with its tag links. A nil folderID leaves the recipe
// unfiled. Tag links are written in the same transaction as the recipe row.
func (r *PostgresRepository) Save(ctx context.Context, recipe domain.Recipe, tagIDs []int64, folderID *int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := r.sb.
		Insert("recipes").
		Columns("title", "ingredients", "steps", "tips", "servings", "prep_time", "cook_time", "source_url", "folder_id").
		Values(
			recipe.Title,
			pq.Array(recipe.Ingredients),
			pq.Array(recipe.Steps),
			pq.Array(recipe.Tips),
			recipe.Servings,
			recipe.PrepTime,
			recipe.CookTime,
			recipe.SourceURL,
			folderID,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert recipe: %w", err)
	}

	for _, tagID := range tagIDs {
		linkQuery, linkArgs, err := r.sb.
			Insert("recipe_tags").
			Columns("recipe_id", "tag_id").
			Values(id, tagID).
			Suffix("ON CONFLICT DO NOTHING").
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("build tag link: %w", err)
		}
		if _, err := tx.ExecContext(ctx, linkQuery, linkArgs...); err != nil {
			return 0, fmt.Errorf("link tag %d: %w", tagID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Search lists recipes matching the query, newest first. Text matches title
// case-insensitively; tag filters require every listed tag.
func (r *PostgresRepository) Search(ctx context.Context, query ports.SearchQuery) ([]domain.Recipe, error) {
	builder := r.sb.
		Select("id", "title", "ingredients", "steps", "tips", "servings", "prep_time", "cook_time", "source_url", "created_at").
		From("recipes").
		OrderBy("created_at DESC")

	if query.Text != "" {
		builder = builder.Where(sq.ILike{"title": "%" + query.Text + "%"})
	}
	if query.FolderID != nil {
		builder = builder.Where(sq.Eq{"folder_id": *query.FolderID})
	}
	if len(query.TagIDs) > 0 {
		builder = builder.Where(
			"id IN (SELECT recipe_id FROM recipe_tags WHERE tag_id = ANY(?) GROUP BY recipe_id HAVING COUNT(DISTINCT tag_id) = ?)",
			pq.Array(query.TagIDs), len(query.TagIDs),
		)
	}

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query recipes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recipes []domain.Recipe
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, recipe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return recipes, nil
}

// Get loads one recipe by id.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (domain.Recipe, error) {
	sqlStr, args, err := r.sb.
		Select("id", "title", "ingredients", "steps", "tips", "servings", "prep_time", "cook_time", "source_url", "created_at").
		From("recipes").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Recipe{}, fmt.Errorf("build get: %w", err)
	}

	recipe, err := scanRecipe(r.db.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Recipe{}, domain.ErrNotFound
	}
	return recipe, err
}

// Delete removes a recipe; tag links go with it via ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	sqlStr, args, err := r.sb.Delete("recipes").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CreateTag inserts a tag, returning the existing row on a duplicate name.
func (r *PostgresRepository) CreateTag(ctx context.Context, name string) (domain.Tag, error) {
	query, args, err := r.sb.
		Insert("tags").
		Columns("name").
		Values(name).
		Suffix("ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id, name").
		ToSql()
	if err != nil {
		return domain.Tag{}, fmt.Errorf("build tag insert: %w", err)
	}

	var tag domain.Tag
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&tag.ID, &tag.Name); err != nil {
		return domain.Tag{}, fmt.Errorf("insert tag: %w", err)
	}
	return tag, nil
}

// ListTags returns all tags ordered by name.
func (r *PostgresRepository) ListTags(ctx context.Context) ([]domain.Tag, error) {
	sqlStr, args, err := r.sb.Select("id", "name").From("tags").OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build tag list: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tags []domain.Tag
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return tags, nil
}

// DeleteTag removes a tag and its recipe links.
func (r *PostgresRepository) DeleteTag(ctx context.Context, id int64) error {
	sqlStr, args, err := r.sb.Delete("tags").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build tag delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CreateFolder inserts a folder, returning the existing row on a duplicate
// name.
func (r *PostgresRepository) CreateFolder(ctx context.Context, name string) (domain.Folder, error) {
	query, args, err := r.sb.
		Insert("folders").
		Columns("name").
		Values(name).
		Suffix("ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id, name").
		ToSql()
	if err != nil {
		return domain.Folder{}, fmt.Errorf("build folder insert: %w", err)
	}

	var folder domain.Folder
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&folder.ID, &folder.Name); err != nil {
		return domain.Folder{}, fmt.Errorf("insert folder: %w", err)
	}
	return folder, nil
}

// ListFolders returns all folders ordered by name.
func (r *PostgresRepository) ListFolders(ctx context.Context) ([]domain.Folder, error) {
	sqlStr, args, err := r.sb.Select("id", "name").From("folders").OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build folder list: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query folders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var folders []domain.Folder
	for rows.Next() {
		var folder domain.Folder
		if err := rows.Scan(&folder.ID, &folder.Name); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return folders, nil
}

// DeleteFolder removes a folder. Recipes filed under it survive and become
// unfiled through the ON DELETE SET NULL constraint.
func (r *PostgresRepository) DeleteFolder(ctx context.Context, id int64) error {
	sqlStr, args, err := r.sb.Delete("folders").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build folder delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecipe(row rowScanner) (domain.Recipe, error) {
	var recipe domain.Recipe
	err := row.Scan(
		&recipe.ID,
		&recipe.Title,
		pq.Array(&recipe.Ingredients),
		pq.Array(&recipe.Steps),
		pq.Array(&recipe.Tips),
		&recipe.Servings,
		&recipe.PrepTime,
		&recipe.CookTime,
		&recipe.SourceURL,
		&recipe.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Recipe{}, err
	}
	if err != nil {
		return domain.Recipe{}, fmt.Errorf("scan recipe: %w", err)
	}
	return recipe, nil
}
