package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"lovelink_client/config"
	apperr "lovelink_client/errors"
	"lovelink_client/logger"
	"lovelink_client/models"
	"lovelink_client/realtime"
)

// NewSQLDB opens the MySQL connection described by cfg. TranslateError is on
// so unique violations surface as gorm.ErrDuplicatedKey across drivers.
func NewSQLDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DB.DSN), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the schema for every collection.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

// SQLStore implements DataService on gorm. Every successful mutation is also
// announced on the publisher so local subscribers see the same change events
// a remote feed would deliver.
type SQLStore struct {
	db     *gorm.DB
	pub    realtime.Publisher
	policy Policy
}

func NewSQLStore(db *gorm.DB, pub realtime.Publisher, policy Policy) *SQLStore {
	return &SQLStore{db: db, pub: pub, policy: policy}
}

func (s *SQLStore) Query(ctx context.Context, collection string, q Query, dest any) error {
	proto, err := prototype(collection)
	if err != nil {
		return err
	}
	return s.policy.Do(ctx, "query", func(ctx context.Context) error {
		tx := s.applyQuery(s.db.WithContext(ctx).Model(proto), q)
		if err := tx.Find(dest).Error; err != nil {
			return mapErr("query", collection, err)
		}
		return nil
	})
}

func (s *SQLStore) Get(ctx context.Context, collection string, key Key, dest any) error {
	proto, err := prototype(collection)
	if err != nil {
		return err
	}
	return s.policy.Do(ctx, "get", func(ctx context.Context) error {
		err := s.db.WithContext(ctx).Model(proto).Where(map[string]any(key)).Take(dest).Error
		return mapErr("get", collection, err)
	})
}

func (s *SQLStore) Insert(ctx context.Context, collection string, record any) error {
	if _, err := prototype(collection); err != nil {
		return err
	}
	if err := models.Validate(record); err != nil {
		return err
	}
	err := s.policy.Do(ctx, "insert", func(ctx context.Context) error {
		return mapErr("insert", collection, s.db.WithContext(ctx).Create(record).Error)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, realtime.EventInsert, collection, record, nil)
	return nil
}

func (s *SQLStore) Update(ctx context.Context, collection string, key Key, upd Update) error {
	proto, err := prototype(collection)
	if err != nil {
		return err
	}
	old, err := prototype(collection)
	if err != nil {
		return err
	}
	err = s.policy.Do(ctx, "update", func(ctx context.Context) error {
		if err := s.db.WithContext(ctx).Model(proto).Where(map[string]any(key)).Take(old).Error; err != nil {
			return mapErr("update", collection, err)
		}
		err := s.db.WithContext(ctx).Model(proto).Where(map[string]any(key)).Updates(map[string]any(upd)).Error
		return mapErr("update", collection, err)
	})
	if err != nil {
		return err
	}
	s.publishMerged(ctx, collection, old, upd)
	return nil
}

func (s *SQLStore) Upsert(ctx context.Context, collection string, record any) error {
	proto, err := prototype(collection)
	if err != nil {
		return err
	}
	if err := models.Validate(record); err != nil {
		return err
	}

	key, err := recordKey(collection, record)
	if err != nil {
		return err
	}
	existed := false
	err = s.policy.Do(ctx, "upsert", func(ctx context.Context) error {
		var n int64
		if err := s.db.WithContext(ctx).Model(proto).Where(map[string]any(key)).Count(&n).Error; err != nil {
			return mapErr("upsert", collection, err)
		}
		existed = n > 0
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error
		return mapErr("upsert", collection, err)
	})
	if err != nil {
		return err
	}
	if existed {
		s.publish(ctx, realtime.EventUpdate, collection, record, nil)
	} else {
		s.publish(ctx, realtime.EventInsert, collection, record, nil)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, collection string, key Key) error {
	proto, err := prototype(collection)
	if err != nil {
		return err
	}
	old, _ := prototype(collection)
	deleted := false
	err = s.policy.Do(ctx, "delete", func(ctx context.Context) error {
		// pre-read and delete share one transaction so the published
		// image belongs to the row this call removed
		return mapErr("delete", collection, s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			found := false
			if err := tx.Model(proto).Where(map[string]any(key)).Take(old).Error; err == nil {
				found = true
			}
			res := tx.Where(map[string]any(key)).Delete(proto)
			if res.Error != nil {
				return mapErr("delete", collection, res.Error)
			}
			deleted = found && res.RowsAffected > 0
			return nil
		}))
	})
	if err != nil {
		return err
	}
	if deleted {
		s.publish(ctx, realtime.EventDelete, collection, nil, old)
	}
	return nil
}

func (s *SQLStore) DeleteWhere(ctx context.Context, collection string, cond map[string]any) error {
	proto, err := prototype(collection)
	if err != nil {
		return err
	}
	olds := protoSlice(proto)
	err = s.policy.Do(ctx, "delete_where", func(ctx context.Context) error {
		return mapErr("delete_where", collection, s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(proto).Where(cond).Find(olds).Error; err != nil {
				return mapErr("delete_where", collection, err)
			}
			res := tx.Where(cond).Delete(proto)
			if res.Error != nil {
				return mapErr("delete_where", collection, res.Error)
			}
			if res.RowsAffected == 0 {
				return apperr.ErrConflict
			}
			return nil
		}))
	})
	if err != nil {
		return err
	}
	for _, old := range sliceElems(olds) {
		s.publish(ctx, realtime.EventDelete, collection, nil, old)
	}
	return nil
}

func (s *SQLStore) UpdateWhere(ctx context.Context, collection string, cond map[string]any, upd Update) error {
	proto, err := prototype(collection)
	if err != nil {
		return err
	}
	olds := protoSlice(proto)
	err = s.policy.Do(ctx, "update_where", func(ctx context.Context) error {
		return mapErr("update_where", collection, s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(proto).Where(cond).Find(olds).Error; err != nil {
				return mapErr("update_where", collection, err)
			}
			res := tx.Model(proto).Where(cond).Updates(map[string]any(upd))
			if res.Error != nil {
				return mapErr("update_where", collection, res.Error)
			}
			if res.RowsAffected == 0 {
				return apperr.ErrConflict
			}
			return nil
		}))
	})
	if err != nil {
		return err
	}
	for _, old := range sliceElems(olds) {
		s.publishMerged(ctx, collection, old, upd)
	}
	return nil
}

func (s *SQLStore) applyQuery(tx *gorm.DB, q Query) *gorm.DB {
	if len(q.Eq) > 0 {
		tx = tx.Where(q.Eq)
	}
	for field, v := range q.Neq {
		tx = tx.Where(fmt.Sprintf("%s <> ?", field), v)
	}
	for field, vs := range q.In {
		tx = tx.Where(fmt.Sprintf("%s IN ?", field), vs)
	}
	for field, vs := range q.NotIn {
		if len(vs) > 0 {
			tx = tx.Where(fmt.Sprintf("%s NOT IN ?", field), vs)
		}
	}
	if len(q.Any) > 0 {
		group := s.db.Where(q.Any[0])
		for _, alt := range q.Any[1:] {
			group = group.Or(alt)
		}
		tx = tx.Where(group)
	}
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		tx = tx.Order(q.OrderBy + " " + dir)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx
}

// publish emits a change event, best effort. The store never fails a write
// because a subscriber could not be told about it.
func (s *SQLStore) publish(ctx context.Context, typ realtime.EventType, collection string, newRec, oldRec any) {
	if s.pub == nil {
		return
	}
	ev := realtime.Event{Type: typ, Collection: collection}
	if newRec != nil {
		if b, err := json.Marshal(newRec); err == nil {
			ev.New = b
		}
	}
	if oldRec != nil {
		if b, err := json.Marshal(oldRec); err == nil {
			ev.Old = b
		}
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		logger.Warn("store: publish change event failed", "collection", collection, "type", typ, "err", err)
	}
}

// publishMerged emits an UPDATE event whose New payload is the old row with
// the updated fields applied, so subscribers see the post-update state.
func (s *SQLStore) publishMerged(ctx context.Context, collection string, old any, upd Update) {
	if s.pub == nil {
		return
	}
	oldJSON, err := json.Marshal(old)
	if err != nil {
		return
	}
	var row map[string]any
	if err := json.Unmarshal(oldJSON, &row); err != nil {
		return
	}
	for field, v := range upd {
		row[field] = v
	}
	newJSON, err := json.Marshal(row)
	if err != nil {
		return
	}
	ev := realtime.Event{Type: realtime.EventUpdate, Collection: collection, New: newJSON, Old: oldJSON}
	if err := s.pub.Publish(ctx, ev); err != nil {
		logger.Warn("store: publish change event failed", "collection", collection, "type", ev.Type, "err", err)
	}
}

func mapErr(op, collection string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.ErrDuplicate
	default:
		return apperr.Backend(op, collection, err)
	}
}

// recordKey extracts the primary key attributes from a record via its JSON
// form, using the per-collection key registry.
func recordKey(collection string, record any) (Key, error) {
	fields, ok := keyFields[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	b, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	var row map[string]any
	if err := json.Unmarshal(b, &row); err != nil {
		return nil, err
	}
	key := make(Key, len(fields))
	for _, f := range fields {
		v, ok := row[f]
		if !ok {
			return nil, fmt.Errorf("record for %s is missing key field %q", collection, f)
		}
		key[f] = v
	}
	return key, nil
}

func protoSlice(proto any) any {
	t := reflect.TypeOf(proto).Elem()
	return reflect.New(reflect.SliceOf(t)).Interface()
}

func sliceElems(slicePtr any) []any {
	v := reflect.ValueOf(slicePtr).Elem()
	out := make([]any, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}
	return out
}
