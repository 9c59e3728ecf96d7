package repository

import (
	"context"

	"task-manager/internal/model"
)

// CategoriesKey holds the serialized category list.
const CategoriesKey = "todoCategories"

// CategoryRepository persists the whole category list under CategoriesKey.
type CategoryRepository struct {
	kv KV
}

func NewCategoryRepository(kv KV) *CategoryRepository {
	return &CategoryRepository{kv: kv}
}

func (r *CategoryRepository) Load(ctx context.Context) ([]model.Category, bool, error) {
	return loadCollection[model.Category](ctx, r.kv, CategoriesKey)
}

func (r *CategoryRepository) Save(ctx context.Context, categories []model.Category) error {
	return saveCollection(ctx, r.kv, CategoriesKey, categories)
}
