package storage

// EntityDeleter is implemented by any component table keyed (directly
// or indirectly) by EntityId that needs to drop an entity's row when
// the entity is removed from the world.
type EntityDeleter interface {
	DeleteEntity(id EntityId)
}

// DeleteEntity removes the id's entry, if any. It satisfies
// EntityDeleter for id-keyed Tables.
func (t *Table[K, V]) DeleteEntity(id EntityId) {
	if k, ok := any(id).(K); ok {
		t.Delete(k)
	}
}

// DeleteEntityView cascades entity deletion across every component
// table that holds a row for that entity, so systems never need to
// remember the full list of tables an entity participates in at the
// call site.
type DeleteEntityView struct {
	tables []EntityDeleter
}

// NewDeleteEntityView builds a cascading delete view over tables.
func NewDeleteEntityView(tables ...EntityDeleter) *DeleteEntityView {
	return &DeleteEntityView{tables: tables}
}

// Delete removes id from every registered table.
func (v *DeleteEntityView) Delete(id EntityId) {
	for _, t := range v.tables {
		t.DeleteEntity(id)
	}
}
