package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	columnID        = "id"
	columnUserID    = "user_id"
	columnArchived  = "archived"
	columnCreatedAt = "created_at"
	columnUpdatedAt = "updated_at"
	queryUserID     = columnUserID + " = ?"
	queryID         = columnID + " = ?"

	opNewAccessor = "records.accessor.new"
	opList        = "list"
	opGetByID     = "get_by_id"
	opFindOne     = "find_one"
	opExists      = "exists"
	opCreate      = "create"
	opUpdate      = "update"
	opDelete      = "delete"

	reasonMissingDatabase    = "missing_database"
	reasonMissingIDProvider  = "missing_id_provider"
	reasonSchemaParseFailed  = "schema_parse_failed"
	reasonMissingOwnership   = "missing_ownership_columns"
	reasonQueryFailed        = "query_failed"
	reasonIDGenerationFailed = "id_generation_failed"
	reasonInsertFailed       = "insert_failed"
	reasonUpdateFailed       = "update_failed"
	reasonDeleteFailed       = "delete_failed"
)

var (
	errMissingDatabase         = errors.New("database handle is required")
	errMissingIDProvider       = errors.New("id provider is required")
	errMissingOwnershipColumns = errors.New("collection must define id and user_id columns")
	errMissingRecord           = errors.New("record is required")
	noOpLogger                 = zap.NewNop()
)

// Entity is implemented by pointers to persisted, user-owned models.
type Entity[T any] interface {
	*T
	TableName() string
	Stamp(id string, userID string, createdAt time.Time)
}

// AccessorConfig describes the dependencies shared by every collection accessor.
type AccessorConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Accessor exposes CRUD over one collection, always scoped to the caller's user id.
type Accessor[T any, PT Entity[T]] struct {
	db         *gorm.DB
	collection string
	columns    map[string]struct{}
	archivable bool
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewAccessor inspects the gorm schema of T and returns an accessor for its table.
// The collection supports archiving when the schema carries an archived column.
func NewAccessor[T any, PT Entity[T]](cfg AccessorConfig) (*Accessor[T, PT], error) {
	if cfg.Database == nil {
		return nil, NewServiceError(opNewAccessor, reasonMissingDatabase, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, NewServiceError(opNewAccessor, reasonMissingIDProvider, errMissingIDProvider)
	}

	statement := &gorm.Statement{DB: cfg.Database}
	if err := statement.Parse(PT(new(T))); err != nil {
		return nil, NewServiceError(opNewAccessor, reasonSchemaParseFailed, err)
	}
	columns := make(map[string]struct{}, len(statement.Schema.DBNames))
	for _, name := range statement.Schema.DBNames {
		columns[name] = struct{}{}
	}
	_, hasID := columns[columnID]
	_, hasOwner := columns[columnUserID]
	if !hasID || !hasOwner {
		return nil, NewServiceError(opNewAccessor, reasonMissingOwnership, errMissingOwnershipColumns)
	}
	_, archivable := columns[columnArchived]

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Accessor[T, PT]{
		db:         cfg.Database,
		collection: statement.Schema.Table,
		columns:    columns,
		archivable: archivable,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Collection returns the table name backing the accessor.
func (a *Accessor[T, PT]) Collection() string {
	return a.collection
}

// Archivable reports whether the collection has an archived flag.
func (a *Accessor[T, PT]) Archivable() bool {
	return a.archivable
}

// HasColumn reports whether the collection schema defines the column.
func (a *Accessor[T, PT]) HasColumn(name string) bool {
	_, ok := a.columns[name]
	return ok
}

// List returns the caller's records matching options, ordered by options.Sort when set.
// Archived rows are excluded unless options.IncludeArchived is true.
func (a *Accessor[T, PT]) List(ctx context.Context, userID UserID, options ListOptions) ([]T, error) {
	query, err := a.scoped(ctx, userID)
	if err != nil {
		return nil, err
	}
	query, err = a.applyListOptions(query, options)
	if err != nil {
		return nil, err
	}

	rows := make([]T, 0)
	if err := query.Find(&rows).Error; err != nil {
		a.logError(opList, reasonQueryFailed, err, zap.String("user_id", userID.String()))
		return nil, a.serviceError(opList, reasonQueryFailed, err)
	}
	return rows, nil
}

// GetByID returns the caller's record with the given id.
func (a *Accessor[T, PT]) GetByID(ctx context.Context, userID UserID, id RecordID) (T, error) {
	var record T
	if id == "" {
		return record, ErrInvalidRecordID
	}
	query, err := a.scoped(ctx, userID)
	if err != nil {
		return record, err
	}
	err = query.Where(queryID, id.String()).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return record, a.notFound(id.String())
	}
	if err != nil {
		a.logError(opGetByID, reasonQueryFailed, err,
			zap.String("user_id", userID.String()),
			zap.String("record_id", id.String()))
		return record, a.serviceError(opGetByID, reasonQueryFailed, err)
	}
	return record, nil
}

// FindOne returns the caller's single record matching every equality filter.
// Archived rows are visible.
func (a *Accessor[T, PT]) FindOne(ctx context.Context, userID UserID, filters map[string]any) (T, error) {
	var record T
	query, err := a.scoped(ctx, userID)
	if err != nil {
		return record, err
	}
	query, err = a.applyFilters(query, filters)
	if err != nil {
		return record, err
	}
	err = query.Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return record, a.notFound(fmt.Sprintf("%v", filters))
	}
	if err != nil {
		a.logError(opFindOne, reasonQueryFailed, err, zap.String("user_id", userID.String()))
		return record, a.serviceError(opFindOne, reasonQueryFailed, err)
	}
	return record, nil
}

// Exists reports whether the caller owns at least one record matching the filters.
// Archived rows are counted.
func (a *Accessor[T, PT]) Exists(ctx context.Context, userID UserID, filters map[string]any) (bool, error) {
	query, err := a.scoped(ctx, userID)
	if err != nil {
		return false, err
	}
	query, err = a.applyFilters(query, filters)
	if err != nil {
		return false, err
	}
	var identifiers []string
	if err := query.Limit(1).Pluck(columnID, &identifiers).Error; err != nil {
		a.logError(opExists, reasonQueryFailed, err, zap.String("user_id", userID.String()))
		return false, a.serviceError(opExists, reasonQueryFailed, err)
	}
	return len(identifiers) > 0, nil
}

// Create stamps the record with a fresh id, the caller as owner and creation timestamps,
// then inserts it. Any owner already set on the record is overwritten.
func (a *Accessor[T, PT]) Create(ctx context.Context, userID UserID, record PT) (T, error) {
	var zero T
	if userID == "" {
		return zero, ErrInvalidUserID
	}
	if record == nil {
		return zero, fmt.Errorf("%w: %v", ErrValidation, errMissingRecord)
	}

	id, err := a.idProvider.NewID()
	if err != nil {
		a.logError(opCreate, reasonIDGenerationFailed, err, zap.String("user_id", userID.String()))
		return zero, a.serviceError(opCreate, reasonIDGenerationFailed, err)
	}
	record.Stamp(id, userID.String(), a.clock().UTC())

	if err := a.db.WithContext(ctx).Create(record).Error; err != nil {
		a.logError(opCreate, reasonInsertFailed, err,
			zap.String("user_id", userID.String()),
			zap.String("record_id", id))
		return zero, a.serviceError(opCreate, reasonInsertFailed, err)
	}
	return *record, nil
}

// Update applies the column assignments to the caller's record and returns the stored result.
func (a *Accessor[T, PT]) Update(ctx context.Context, userID UserID, id RecordID, fields map[string]any) (T, error) {
	var zero T
	if len(fields) == 0 {
		return zero, ErrNoFields
	}
	if id == "" {
		return zero, ErrInvalidRecordID
	}

	assignments := make(map[string]any, len(fields)+1)
	for column, value := range fields {
		switch column {
		case columnID, columnUserID, columnCreatedAt:
			return zero, fmt.Errorf("%w: %s", ErrImmutableField, column)
		}
		if !a.HasColumn(column) {
			return zero, fmt.Errorf("%w: unknown column %q", ErrInvalidOptions, column)
		}
		assignments[column] = value
	}
	if a.HasColumn(columnUpdatedAt) {
		assignments[columnUpdatedAt] = a.clock().UTC()
	}

	query, err := a.scoped(ctx, userID)
	if err != nil {
		return zero, err
	}
	result := query.Where(queryID, id.String()).Updates(assignments)
	if result.Error != nil {
		a.logError(opUpdate, reasonUpdateFailed, result.Error,
			zap.String("user_id", userID.String()),
			zap.String("record_id", id.String()))
		return zero, a.serviceError(opUpdate, reasonUpdateFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return zero, a.notFound(id.String())
	}
	return a.GetByID(ctx, userID, id)
}

// Archive sets the archived flag on the caller's record.
func (a *Accessor[T, PT]) Archive(ctx context.Context, userID UserID, id RecordID) (T, error) {
	return a.setArchived(ctx, userID, id, true)
}

// Unarchive clears the archived flag on the caller's record.
func (a *Accessor[T, PT]) Unarchive(ctx context.Context, userID UserID, id RecordID) (T, error) {
	return a.setArchived(ctx, userID, id, false)
}

// Delete removes the caller's record; zero affected rows is reported as ErrNotFound.
func (a *Accessor[T, PT]) Delete(ctx context.Context, userID UserID, id RecordID) error {
	if id == "" {
		return ErrInvalidRecordID
	}
	query, err := a.scoped(ctx, userID)
	if err != nil {
		return err
	}
	result := query.Where(queryID, id.String()).Delete(PT(new(T)))
	if result.Error != nil {
		a.logError(opDelete, reasonDeleteFailed, result.Error,
			zap.String("user_id", userID.String()),
			zap.String("record_id", id.String()))
		return a.serviceError(opDelete, reasonDeleteFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return a.notFound(id.String())
	}
	return nil
}

func (a *Accessor[T, PT]) setArchived(ctx context.Context, userID UserID, id RecordID, archived bool) (T, error) {
	if !a.archivable {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrArchiveUnsupported, a.collection)
	}
	return a.Update(ctx, userID, id, map[string]any{columnArchived: archived})
}

// scoped is the only entry point to the table for reads and writes; it always
// carries the owner predicate.
func (a *Accessor[T, PT]) scoped(ctx context.Context, userID UserID) (*gorm.DB, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	return a.db.WithContext(ctx).Model(PT(new(T))).Where(queryUserID, userID.String()), nil
}

func (a *Accessor[T, PT]) applyListOptions(query *gorm.DB, options ListOptions) (*gorm.DB, error) {
	if options.Page < 0 || options.Limit < 0 {
		return nil, fmt.Errorf("%w: page and limit must not be negative", ErrInvalidOptions)
	}

	if len(options.Select) > 0 {
		for _, column := range options.Select {
			if !a.HasColumn(column) {
				return nil, fmt.Errorf("%w: unknown column %q", ErrInvalidOptions, column)
			}
		}
		query = query.Select(options.Select)
	}

	if a.archivable && !options.IncludeArchived {
		query = query.Where(clause.Eq{Column: clause.Column{Name: columnArchived}, Value: false})
	}

	query, err := a.applyFilters(query, options.Filters)
	if err != nil {
		return nil, err
	}

	if options.Sort != "" {
		order, err := ParseSort(options.Sort)
		if err != nil {
			return nil, err
		}
		if !a.HasColumn(order.Field) {
			return nil, fmt.Errorf("%w: unknown sort column %q", ErrInvalidOptions, order.Field)
		}
		query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: order.Field}, Desc: order.Descending})
	}

	if options.Limit > 0 {
		page := options.Page
		if page == 0 {
			page = 1
		}
		from, _ := PageRange(page, options.Limit)
		query = query.Offset(from).Limit(options.Limit)
	}

	return query, nil
}

func (a *Accessor[T, PT]) applyFilters(query *gorm.DB, filters map[string]any) (*gorm.DB, error) {
	columns := make([]string, 0, len(filters))
	for column := range filters {
		if !a.HasColumn(column) {
			return nil, fmt.Errorf("%w: unknown filter column %q", ErrInvalidOptions, column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)
	for _, column := range columns {
		query = query.Where(clause.Eq{Column: clause.Column{Name: column}, Value: filters[column]})
	}
	return query, nil
}

func (a *Accessor[T, PT]) notFound(key string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, a.collection, key)
}

func (a *Accessor[T, PT]) serviceError(operation, reason string, cause error) error {
	return NewServiceError("records."+a.collection+"."+operation, reason, cause)
}

func (a *Accessor[T, PT]) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("collection", a.collection),
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	a.logger.Error("records accessor error", attrs...)
}
