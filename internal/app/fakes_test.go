package app

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"sync"
	"time"

	"akredoc/api/internal/authpw"
	"akredoc/api/internal/config"
	"akredoc/api/internal/export"
	"akredoc/api/internal/gitrepo"
	"akredoc/api/internal/store"
)

// fakeStore implements dataStore, authpw.UserStore and authpw.RememberStore
// with overridable function fields. Unset getters report "no rows"; unset
// writes succeed.
type fakeStore struct {
	getUserByIDFn       func(ctx context.Context, userID string) (store.User, error)
	getUserByNameFn     func(ctx context.Context, name string) (store.User, error)
	getUserByEmailFn    func(ctx context.Context, email string) (store.User, error)
	listUsersFn         func(ctx context.Context) ([]store.User, error)
	createUserFn        func(ctx context.Context, user store.User) error
	updateProfileFn     func(ctx context.Context, userID, name, email string) (store.User, error)
	updatePasswordFn    func(ctx context.Context, userID, passwordHash string) error
	saveResetTokenFn    func(ctx context.Context, email, tokenHash string) error
	getResetTokenFn     func(ctx context.Context, email string) (store.PasswordResetToken, error)
	deleteResetTokenFn  func(ctx context.Context, email string) error
	saveRememberFn      func(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	lookupRememberFn    func(ctx context.Context, tokenHash string) (string, error)
	revokeRememberFn    func(ctx context.Context, tokenHash string) error
	saveSectionFn       func(ctx context.Context, params store.SaveSectionParams) (store.PpeppSection, error)
	getSectionFn        func(ctx context.Context, userID, code string) (store.PpeppSection, error)
	listSectionsFn      func(ctx context.Context, userID string) ([]store.PpeppSection, error)
	listStageContentsFn func(ctx context.Context, userID string) ([]store.StageContent, error)
	countByStageFn      func(ctx context.Context, userID string) ([]store.DocumentStageCount, error)
	insertDocumentFn    func(ctx context.Context, doc store.Document, logEntry store.ActivityLog) error
	getDocumentFn       func(ctx context.Context, documentID string) (store.Document, error)
	listDocsByUserFn    func(ctx context.Context, userID string) ([]store.Document, error)
	listDocsBySectionFn func(ctx context.Context, userID, code string) ([]store.Document, error)
	countDocsByUserFn   func(ctx context.Context, userID string) (int, error)
	updateDocumentFn    func(ctx context.Context, documentID, name string, sectionContent *string, logEntry store.ActivityLog) (store.Document, error)
	deleteDocumentFn    func(ctx context.Context, documentID string, logEntry store.ActivityLog) error
	bulkDeleteFn        func(ctx context.Context, userID string, documentIDs []string, logEntry store.ActivityLog) (int, error)
	listDocOwnersFn     func(ctx context.Context, documentIDs []string) (map[string]string, error)
	createEventFn       func(ctx context.Context, event store.Event, notifications []store.Notification, logEntry store.ActivityLog) error
	getEventFn          func(ctx context.Context, eventID string) (store.Event, error)
	listEventsFn        func(ctx context.Context, year int, month time.Month) ([]store.Event, error)
	updateEventFn       func(ctx context.Context, event store.Event, logEntry store.ActivityLog) (store.Event, error)
	deleteEventFn       func(ctx context.Context, eventID string, logEntry store.ActivityLog) error
	listNotificationsFn func(ctx context.Context, userID string) ([]store.Notification, error)
	countUnreadFn       func(ctx context.Context, userID string) (int, error)
	markReadFn          func(ctx context.Context, userID, notificationID string) error
	markAllReadFn       func(ctx context.Context, userID string) error
	insertLogFn         func(ctx context.Context, logEntry store.ActivityLog) error
	listLogsFn          func(ctx context.Context, limit, offset int) ([]store.ActivityLog, int, error)
	listLogsByUserFn    func(ctx context.Context, userID string, limit, offset int) ([]store.ActivityLog, error)
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByName(ctx context.Context, name string) (store.User, error) {
	if f.getUserByNameFn != nil {
		return f.getUserByNameFn(ctx, name)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) ListUsers(ctx context.Context) ([]store.User, error) {
	if f.listUsersFn != nil {
		return f.listUsersFn(ctx)
	}
	return []store.User{}, nil
}

func (f *fakeStore) CreateUser(ctx context.Context, user store.User) error {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, user)
	}
	return nil
}

func (f *fakeStore) UpdateUserProfile(ctx context.Context, userID, name, email string) (store.User, error) {
	if f.updateProfileFn != nil {
		return f.updateProfileFn(ctx, userID, name, email)
	}
	return store.User{ID: userID, Name: name, Email: email}, nil
}

func (f *fakeStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	if f.updatePasswordFn != nil {
		return f.updatePasswordFn(ctx, userID, passwordHash)
	}
	return nil
}

func (f *fakeStore) SavePasswordResetToken(ctx context.Context, email, tokenHash string) error {
	if f.saveResetTokenFn != nil {
		return f.saveResetTokenFn(ctx, email, tokenHash)
	}
	return nil
}

func (f *fakeStore) GetPasswordResetToken(ctx context.Context, email string) (store.PasswordResetToken, error) {
	if f.getResetTokenFn != nil {
		return f.getResetTokenFn(ctx, email)
	}
	return store.PasswordResetToken{}, sql.ErrNoRows
}

func (f *fakeStore) DeletePasswordResetToken(ctx context.Context, email string) error {
	if f.deleteResetTokenFn != nil {
		return f.deleteResetTokenFn(ctx, email)
	}
	return nil
}

func (f *fakeStore) SaveRememberToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	if f.saveRememberFn != nil {
		return f.saveRememberFn(ctx, tokenHash, userID, expiresAt)
	}
	return nil
}

func (f *fakeStore) LookupRememberToken(ctx context.Context, tokenHash string) (string, error) {
	if f.lookupRememberFn != nil {
		return f.lookupRememberFn(ctx, tokenHash)
	}
	return "", sql.ErrNoRows
}

func (f *fakeStore) RevokeRememberToken(ctx context.Context, tokenHash string) error {
	if f.revokeRememberFn != nil {
		return f.revokeRememberFn(ctx, tokenHash)
	}
	return nil
}

func (f *fakeStore) SaveSection(ctx context.Context, params store.SaveSectionParams) (store.PpeppSection, error) {
	if f.saveSectionFn != nil {
		return f.saveSectionFn(ctx, params)
	}
	return store.PpeppSection{
		ID:          params.SectionID,
		UserID:      params.UserID,
		SectionCode: params.SectionCode,
		SectionName: params.SectionName,
		Content:     params.Content,
		Status:      "draft",
	}, nil
}

func (f *fakeStore) GetSection(ctx context.Context, userID, code string) (store.PpeppSection, error) {
	if f.getSectionFn != nil {
		return f.getSectionFn(ctx, userID, code)
	}
	return store.PpeppSection{}, sql.ErrNoRows
}

func (f *fakeStore) ListSections(ctx context.Context, userID string) ([]store.PpeppSection, error) {
	if f.listSectionsFn != nil {
		return f.listSectionsFn(ctx, userID)
	}
	return []store.PpeppSection{}, nil
}

func (f *fakeStore) ListStageContents(ctx context.Context, userID string) ([]store.StageContent, error) {
	if f.listStageContentsFn != nil {
		return f.listStageContentsFn(ctx, userID)
	}
	return []store.StageContent{}, nil
}

func (f *fakeStore) CountDocumentsByStage(ctx context.Context, userID string) ([]store.DocumentStageCount, error) {
	if f.countByStageFn != nil {
		return f.countByStageFn(ctx, userID)
	}
	return []store.DocumentStageCount{}, nil
}

func (f *fakeStore) InsertDocument(ctx context.Context, doc store.Document, logEntry store.ActivityLog) error {
	if f.insertDocumentFn != nil {
		return f.insertDocumentFn(ctx, doc, logEntry)
	}
	return nil
}

func (f *fakeStore) GetDocument(ctx context.Context, documentID string) (store.Document, error) {
	if f.getDocumentFn != nil {
		return f.getDocumentFn(ctx, documentID)
	}
	return store.Document{}, sql.ErrNoRows
}

func (f *fakeStore) ListDocumentsByUser(ctx context.Context, userID string) ([]store.Document, error) {
	if f.listDocsByUserFn != nil {
		return f.listDocsByUserFn(ctx, userID)
	}
	return []store.Document{}, nil
}

func (f *fakeStore) ListDocumentsBySection(ctx context.Context, userID, code string) ([]store.Document, error) {
	if f.listDocsBySectionFn != nil {
		return f.listDocsBySectionFn(ctx, userID, code)
	}
	return []store.Document{}, nil
}

func (f *fakeStore) CountDocumentsByUser(ctx context.Context, userID string) (int, error) {
	if f.countDocsByUserFn != nil {
		return f.countDocsByUserFn(ctx, userID)
	}
	return 0, nil
}

func (f *fakeStore) UpdateDocument(ctx context.Context, documentID, name string, sectionContent *string, logEntry store.ActivityLog) (store.Document, error) {
	if f.updateDocumentFn != nil {
		return f.updateDocumentFn(ctx, documentID, name, sectionContent, logEntry)
	}
	return store.Document{ID: documentID, Name: name}, nil
}

func (f *fakeStore) DeleteDocument(ctx context.Context, documentID string, logEntry store.ActivityLog) error {
	if f.deleteDocumentFn != nil {
		return f.deleteDocumentFn(ctx, documentID, logEntry)
	}
	return nil
}

func (f *fakeStore) BulkDeleteDocuments(ctx context.Context, userID string, documentIDs []string, logEntry store.ActivityLog) (int, error) {
	if f.bulkDeleteFn != nil {
		return f.bulkDeleteFn(ctx, userID, documentIDs, logEntry)
	}
	return len(documentIDs), nil
}

func (f *fakeStore) ListDocumentOwners(ctx context.Context, documentIDs []string) (map[string]string, error) {
	if f.listDocOwnersFn != nil {
		return f.listDocOwnersFn(ctx, documentIDs)
	}
	return map[string]string{}, nil
}

func (f *fakeStore) CreateEvent(ctx context.Context, event store.Event, notifications []store.Notification, logEntry store.ActivityLog) error {
	if f.createEventFn != nil {
		return f.createEventFn(ctx, event, notifications, logEntry)
	}
	return nil
}

func (f *fakeStore) GetEvent(ctx context.Context, eventID string) (store.Event, error) {
	if f.getEventFn != nil {
		return f.getEventFn(ctx, eventID)
	}
	return store.Event{}, sql.ErrNoRows
}

func (f *fakeStore) ListEventsByMonth(ctx context.Context, year int, month time.Month) ([]store.Event, error) {
	if f.listEventsFn != nil {
		return f.listEventsFn(ctx, year, month)
	}
	return []store.Event{}, nil
}

func (f *fakeStore) UpdateEvent(ctx context.Context, event store.Event, logEntry store.ActivityLog) (store.Event, error) {
	if f.updateEventFn != nil {
		return f.updateEventFn(ctx, event, logEntry)
	}
	return event, nil
}

func (f *fakeStore) DeleteEvent(ctx context.Context, eventID string, logEntry store.ActivityLog) error {
	if f.deleteEventFn != nil {
		return f.deleteEventFn(ctx, eventID, logEntry)
	}
	return nil
}

func (f *fakeStore) ListNotificationsByUser(ctx context.Context, userID string) ([]store.Notification, error) {
	if f.listNotificationsFn != nil {
		return f.listNotificationsFn(ctx, userID)
	}
	return []store.Notification{}, nil
}

func (f *fakeStore) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	if f.countUnreadFn != nil {
		return f.countUnreadFn(ctx, userID)
	}
	return 0, nil
}

func (f *fakeStore) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, userID, notificationID)
	}
	return nil
}

func (f *fakeStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	if f.markAllReadFn != nil {
		return f.markAllReadFn(ctx, userID)
	}
	return nil
}

func (f *fakeStore) InsertActivityLog(ctx context.Context, logEntry store.ActivityLog) error {
	if f.insertLogFn != nil {
		return f.insertLogFn(ctx, logEntry)
	}
	return nil
}

func (f *fakeStore) ListActivityLogs(ctx context.Context, limit, offset int) ([]store.ActivityLog, int, error) {
	if f.listLogsFn != nil {
		return f.listLogsFn(ctx, limit, offset)
	}
	return []store.ActivityLog{}, 0, nil
}

func (f *fakeStore) ListActivityLogsByUser(ctx context.Context, userID string, limit, offset int) ([]store.ActivityLog, error) {
	if f.listLogsByUserFn != nil {
		return f.listLogsByUserFn(ctx, userID, limit, offset)
	}
	return []store.ActivityLog{}, nil
}

type fakeGit struct {
	commits []gitrepo.CommitInfo
}

func (f *fakeGit) CommitSection(userID, code, stage, content, author string) (gitrepo.CommitInfo, error) {
	info := gitrepo.CommitInfo{Hash: "abc1234", Message: code, Author: author, CreatedAt: time.Now()}
	f.commits = append(f.commits, info)
	return info, nil
}

func (f *fakeGit) History(userID, code, stage string, limit int) ([]gitrepo.CommitInfo, error) {
	return f.commits, nil
}

// fakeStorage keeps uploaded objects in memory.
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		TokenSecret: "test-secret",
		AccessTTL:   time.Hour,
		RememberTTL: 24 * time.Hour,
		BaseURL:     "http://localhost:5173",
	}
}

func newTestService(fs *fakeStore, fg *fakeGit, storage *fakeStorage) *Service {
	cfg := testConfig()
	authService := authpw.NewService(fs, fs, cfg.RememberTTL)
	var git gitService
	if fg != nil {
		git = fg
	}
	var objStore objectStorage
	if storage != nil {
		objStore = storage
	}
	return New(cfg, fs, nil, authService, git, objStore, nil, export.NewService(), nil)
}
