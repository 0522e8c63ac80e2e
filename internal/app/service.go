package app

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"akredoc/api/internal/auth"
	"akredoc/api/internal/authpw"
	"akredoc/api/internal/config"
	"akredoc/api/internal/email"
	"akredoc/api/internal/export"
	"akredoc/api/internal/gitrepo"
	"akredoc/api/internal/ppepp"
	"akredoc/api/internal/rbac"
	"akredoc/api/internal/search"
	"akredoc/api/internal/storage"
	"akredoc/api/internal/store"
	"akredoc/api/internal/util"
)

const (
	maxContentLength = 10000
	maxUploadBytes   = 10 << 20
	activityPageSize = 50
)

// Session is the authenticated caller, resolved from the bearer token.
type Session struct {
	UserID   string
	UserName string
	Role     string
	Token    string
}

type dataStore interface {
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	ListUsers(ctx context.Context) ([]store.User, error)
	UpdateUserProfile(ctx context.Context, userID, name, email string) (store.User, error)

	SaveSection(ctx context.Context, params store.SaveSectionParams) (store.PpeppSection, error)
	GetSection(ctx context.Context, userID, code string) (store.PpeppSection, error)
	ListSections(ctx context.Context, userID string) ([]store.PpeppSection, error)
	ListStageContents(ctx context.Context, userID string) ([]store.StageContent, error)
	CountDocumentsByStage(ctx context.Context, userID string) ([]store.DocumentStageCount, error)

	InsertDocument(ctx context.Context, doc store.Document, logEntry store.ActivityLog) error
	GetDocument(ctx context.Context, documentID string) (store.Document, error)
	ListDocumentsByUser(ctx context.Context, userID string) ([]store.Document, error)
	ListDocumentsBySection(ctx context.Context, userID, code string) ([]store.Document, error)
	CountDocumentsByUser(ctx context.Context, userID string) (int, error)
	UpdateDocument(ctx context.Context, documentID, name string, sectionContent *string, logEntry store.ActivityLog) (store.Document, error)
	DeleteDocument(ctx context.Context, documentID string, logEntry store.ActivityLog) error
	BulkDeleteDocuments(ctx context.Context, userID string, documentIDs []string, logEntry store.ActivityLog) (int, error)
	ListDocumentOwners(ctx context.Context, documentIDs []string) (map[string]string, error)

	CreateEvent(ctx context.Context, event store.Event, notifications []store.Notification, logEntry store.ActivityLog) error
	GetEvent(ctx context.Context, eventID string) (store.Event, error)
	ListEventsByMonth(ctx context.Context, year int, month time.Month) ([]store.Event, error)
	UpdateEvent(ctx context.Context, event store.Event, logEntry store.ActivityLog) (store.Event, error)
	DeleteEvent(ctx context.Context, eventID string, logEntry store.ActivityLog) error

	ListNotificationsByUser(ctx context.Context, userID string) ([]store.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error

	InsertActivityLog(ctx context.Context, logEntry store.ActivityLog) error
	ListActivityLogs(ctx context.Context, limit, offset int) ([]store.ActivityLog, int, error)
	ListActivityLogsByUser(ctx context.Context, userID string, limit, offset int) ([]store.ActivityLog, error)
}

type gitService interface {
	CommitSection(userID, code, stage, content, author string) (gitrepo.CommitInfo, error)
	History(userID, code, stage string, limit int) ([]gitrepo.CommitInfo, error)
}

type objectStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type Service struct {
	cfg     config.Config
	store   dataStore
	ping    func(ctx context.Context) error
	authpw  *authpw.Service
	git     gitService
	storage objectStorage
	search  *search.Service
	export  *export.Service
	email   *email.Service
}

func New(cfg config.Config, dataStore dataStore, ping func(ctx context.Context) error, authService *authpw.Service, gitService gitService, storage objectStorage, searchService *search.Service, exportService *export.Service, emailService *email.Service) *Service {
	return &Service{
		cfg:     cfg,
		store:   dataStore,
		ping:    ping,
		authpw:  authService,
		git:     gitService,
		storage: storage,
		search:  searchService,
		export:  exportService,
		email:   emailService,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Role(role), action)
}

// -- auth --

func (s *Service) issueSession(user store.User) (Session, error) {
	claims := auth.Claims{
		Sub:  user.ID,
		Name: user.Name,
		Role: user.Role,
		JTI:  util.NewID(""),
		Exp:  time.Now().Add(s.cfg.AccessTTL).Unix(),
	}
	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), claims)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{UserID: user.ID, UserName: user.Name, Role: user.Role, Token: token}, nil
}

func (s *Service) SessionFromToken(token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: claims.Sub, UserName: claims.Name, Role: claims.Role, Token: token}, nil
}

func (s *Service) Register(ctx context.Context, req authpw.RegisterRequest) (store.User, error) {
	user, err := s.authpw.Register(ctx, req)
	if err != nil {
		return store.User{}, err
	}
	s.logActivity(ctx, store.ActivityLog{
		ID:          util.NewID("log"),
		UserID:      user.ID,
		Action:      "register",
		ActionType:  "user",
		ActionID:    user.ID,
		Description: fmt.Sprintf("Registrasi akun %s (%s)", user.Name, user.Role),
	})
	return user, nil
}

func (s *Service) Login(ctx context.Context, name, password string, rememberMe bool, ip string) (Session, string, error) {
	result, err := s.authpw.Login(ctx, name, password, rememberMe)
	if err != nil {
		return Session{}, "", err
	}
	session, err := s.issueSession(result.User)
	if err != nil {
		return Session{}, "", err
	}
	s.logActivity(ctx, store.ActivityLog{
		ID:          util.NewID("log"),
		UserID:      result.User.ID,
		Action:      "login",
		ActionType:  "user",
		ActionID:    result.User.ID,
		Description: fmt.Sprintf("Login %s", result.User.Name),
		IPAddress:   ip,
	})
	return session, result.RememberToken, nil
}

func (s *Service) LoginRemember(ctx context.Context, rememberToken string) (Session, error) {
	user, err := s.authpw.LoginRemember(ctx, rememberToken)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(user)
}

func (s *Service) Logout(ctx context.Context, session Session, rememberToken string) {
	s.authpw.Logout(ctx, rememberToken)
	if session.UserID != "" {
		s.logActivity(ctx, store.ActivityLog{
			ID:          util.NewID("log"),
			UserID:      session.UserID,
			Action:      "logout",
			ActionType:  "user",
			ActionID:    session.UserID,
			Description: fmt.Sprintf("Logout %s", session.UserName),
		})
	}
}

// ForgotPassword always succeeds from the caller's point of view so the
// endpoint does not reveal which emails exist.
func (s *Service) ForgotPassword(ctx context.Context, emailAddr string) error {
	user, token, ok, err := s.authpw.RequestPasswordReset(ctx, emailAddr)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if s.email != nil && s.email.IsConfigured() {
		resetURL := fmt.Sprintf("%s/reset-password?email=%s&token=%s", strings.TrimRight(s.cfg.BaseURL, "/"), emailAddr, token)
		go func() {
			if err := s.email.SendPasswordResetEmail(emailAddr, user.Name, resetURL); err != nil {
				log.Printf("app: send reset email to %s: %v", emailAddr, err)
			}
		}()
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, emailAddr, token, password string) error {
	return s.authpw.ResetPassword(ctx, emailAddr, token, password)
}

func (s *Service) Profile(ctx context.Context, session Session) (store.User, error) {
	return s.store.GetUserByID(ctx, session.UserID)
}

type UpdateProfileInput struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

func (s *Service) UpdateProfile(ctx context.Context, session Session, input UpdateProfileInput) (store.User, error) {
	current, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return store.User{}, err
	}

	name := current.Name
	if input.Name != nil {
		name = strings.TrimSpace(*input.Name)
		if name == "" {
			return store.User{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{"name": "name cannot be empty"})
		}
	}
	emailAddr := current.Email
	if input.Email != nil {
		emailAddr = strings.TrimSpace(*input.Email)
	}

	user, err := s.store.UpdateUserProfile(ctx, session.UserID, name, emailAddr)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return store.User{}, domainError(http.StatusConflict, "CONFLICT", "Name or email already in use", nil)
		}
		return store.User{}, err
	}

	if input.Password != nil && *input.Password != "" {
		if err := s.authpw.SetPassword(ctx, session.UserID, *input.Password); err != nil {
			return store.User{}, err
		}
	}

	s.logActivity(ctx, store.ActivityLog{
		ID:          util.NewID("log"),
		UserID:      session.UserID,
		Action:      "update_profile",
		ActionType:  "user",
		ActionID:    session.UserID,
		Description: fmt.Sprintf("Perbarui profil %s", user.Name),
	})
	return user, nil
}

// -- sections --

type SaveSectionInput struct {
	SectionCode string `json:"section_code"`
	Detail      string `json:"detail"`
	Content     string `json:"content"`
}

func (s *Service) SaveSection(ctx context.Context, session Session, input SaveSectionInput, ip string) (map[string]any, error) {
	code := strings.TrimSpace(input.SectionCode)
	if !ppepp.ValidCode(code) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{"section_code": "unknown section code"})
	}
	detail := strings.TrimSpace(input.Detail)
	if detail != "" {
		if !ppepp.ValidStage(detail) {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{"detail": "unknown stage"})
		}
		if !ppepp.IsCriterion(code) {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{"detail": "stages only apply to C sections"})
		}
	}
	if len(input.Content) > maxContentLength {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{"content": fmt.Sprintf("content exceeds %d characters", maxContentLength)})
	}

	target := "isi"
	if detail != "" {
		target = "tahap " + detail
	}
	section, err := s.store.SaveSection(ctx, store.SaveSectionParams{
		SectionID:      util.NewID("sec"),
		StageContentID: util.NewID("stc"),
		UserID:         session.UserID,
		SectionCode:    code,
		SectionName:    ppepp.SectionName(code),
		Stage:          detail,
		Content:        input.Content,
		Log: store.ActivityLog{
			ID:          util.NewID("log"),
			UserID:      session.UserID,
			Action:      "save_section",
			ActionType:  "section",
			ActionID:    code,
			Description: fmt.Sprintf("Simpan %s bagian %s", target, code),
			IPAddress:   ip,
		},
	})
	if err != nil {
		return nil, err
	}

	if s.git != nil {
		if _, err := s.git.CommitSection(session.UserID, code, detail, input.Content, session.UserName); err != nil {
			log.Printf("app: commit section %s for %s: %v", code, session.UserID, err)
		}
	}
	if s.search != nil && detail == "" {
		s.search.IndexSection(search.SectionRecord{
			ID:          section.ID,
			UserID:      session.UserID,
			SectionCode: code,
			SectionName: section.SectionName,
			Content:     input.Content,
		})
	}

	return map[string]any{
		"id":           section.ID,
		"section_code": section.SectionCode,
		"section_name": section.SectionName,
		"detail":       detail,
		"content":      input.Content,
		"status":       section.Status,
		"updated_at":   section.UpdatedAt,
	}, nil
}

func (s *Service) Sections(ctx context.Context, session Session) ([]map[string]any, error) {
	sections, err := s.store.ListSections(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	stageContents, err := s.store.ListStageContents(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	stagesBySection := make(map[string]map[string]string)
	for _, sc := range stageContents {
		if stagesBySection[sc.SectionID] == nil {
			stagesBySection[sc.SectionID] = make(map[string]string)
		}
		stagesBySection[sc.SectionID][sc.Stage] = sc.Content
	}

	out := make([]map[string]any, 0, len(sections))
	for _, section := range sections {
		item := map[string]any{
			"id":           section.ID,
			"section_code": section.SectionCode,
			"section_name": section.SectionName,
			"content":      section.Content,
			"status":       section.Status,
			"updated_at":   section.UpdatedAt,
		}
		if stages, ok := stagesBySection[section.ID]; ok {
			item["stages"] = stages
		}
		out = append(out, item)
	}
	return out, nil
}

// -- documents --

type UploadInput struct {
	SectionCode string
	Detail      string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

func (s *Service) UploadDocument(ctx context.Context, session Session, input UploadInput, ip string) (store.Document, error) {
	code := strings.TrimSpace(input.SectionCode)
	if !ppepp.ValidCode(code) {
		return store.Document{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{"section_code": "unknown section code"})
	}
	detail := strings.TrimSpace(input.Detail)
	if ppepp.IsCriterion(code) {
		if !ppepp.ValidStage(detail) {
			return store.Document{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{"detail": "a valid stage is required for C sections"})
		}
	} else if detail != "" {
		return store.Document{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{"detail": "stages only apply to C sections"})
	}
	if input.Filename == "" {
		return store.Document{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{"file": "a file is required"})
	}
	if input.Size > maxUploadBytes {
		return store.Document{}, domainError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File exceeds the 10MB limit", nil)
	}

	section, err := s.store.GetSection(ctx, session.UserID, code)
	if errors.Is(err, sql.ErrNoRows) {
		section, err = s.store.SaveSection(ctx, store.SaveSectionParams{
			SectionID:   util.NewID("sec"),
			UserID:      session.UserID,
			SectionCode: code,
			SectionName: ppepp.SectionName(code),
		})
	}
	if err != nil {
		return store.Document{}, err
	}

	doc := store.Document{
		ID:          util.NewID("doc"),
		UserID:      session.UserID,
		SectionID:   section.ID,
		SectionCode: code,
		Name:        input.Filename,
		ContentType: input.ContentType,
		Size:        input.Size,
		Status:      "active",
		Detail:      detail,
	}
	doc.ObjectKey = storage.ObjectKey(session.UserID, doc.ID, input.Filename)

	if s.storage != nil {
		if err := s.storage.Put(ctx, doc.ObjectKey, input.Body, input.Size, input.ContentType); err != nil {
			return store.Document{}, fmt.Errorf("store upload: %w", err)
		}
	}

	if err := s.store.InsertDocument(ctx, doc, store.ActivityLog{
		ID:          util.NewID("log"),
		UserID:      session.UserID,
		Action:      "upload_document",
		ActionType:  "document",
		ActionID:    doc.ID,
		Description: fmt.Sprintf("Unggah dokumen %s ke bagian %s", input.Filename, code),
		IPAddress:   ip,
	}); err != nil {
		if s.storage != nil {
			_ = s.storage.Delete(ctx, doc.ObjectKey)
		}
		return store.Document{}, err
	}

	if s.search != nil {
		s.search.IndexDocument(search.DocumentRecord{
			ID:          doc.ID,
			UserID:      doc.UserID,
			SectionCode: doc.SectionCode,
			Name:        doc.Name,
			Detail:      doc.Detail,
		})
	}
	return doc, nil
}

func (s *Service) SectionDocuments(ctx context.Context, session Session, code string) ([]store.Document, error) {
	if !ppepp.ValidCode(code) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{"section_code": "unknown section code"})
	}
	return s.store.ListDocumentsBySection(ctx, session.UserID, code)
}

func (s *Service) Documents(ctx context.Context, session Session) ([]store.Document, error) {
	return s.store.ListDocumentsByUser(ctx, session.UserID)
}

func (s *Service) DocumentsCount(ctx context.Context, session Session) (int, error) {
	return s.store.CountDocumentsByUser(ctx, session.UserID)
}

// DownloadResult carries either the stored original or a converted
// rendition of the owning section's content.
type DownloadResult struct {
	Reader   io.ReadCloser
	Size     int64
	Filename string
	MimeType string
}

func (s *Service) DownloadDocument(ctx context.Context, session Session, documentID, rawFormat string) (*DownloadResult, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, domainError(http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Unsupported download format", nil)
	}

	doc, err := s.ownedDocument(ctx, session, documentID)
	if err != nil {
		return nil, err
	}

	if format == export.FormatOriginal {
		if s.storage == nil {
			return nil, fmt.Errorf("object storage not configured")
		}
		reader, err := s.storage.Get(ctx, doc.ObjectKey)
		if err != nil {
			return nil, fmt.Errorf("fetch object %s: %w", doc.ObjectKey, err)
		}
		return &DownloadResult{Reader: reader, Size: doc.Size, Filename: doc.Name, MimeType: doc.ContentType}, nil
	}

	section, err := s.store.GetSection(ctx, doc.UserID, doc.SectionCode)
	if err != nil {
		return nil, err
	}
	result, err := s.export.Convert(section.Content, doc.Name, section.SectionName, format)
	if err != nil {
		return nil, err
	}
	return &DownloadResult{
		Reader:   io.NopCloser(bytes.NewReader(result.Data)),
		Size:     int64(len(result.Data)),
		Filename: result.Filename,
		MimeType: result.MimeType,
	}, nil
}

type UpdateDocumentInput struct {
	Name    *string `json:"name"`
	Content *string `json:"content"`
}

func (s *Service) UpdateDocument(ctx context.Context, session Session, documentID string, input UpdateDocumentInput, ip string) (store.Document, error) {
	doc, err := s.ownedDocument(ctx, session, documentID)
	if err != nil {
		return store.Document{}, err
	}

	name := doc.Name
	if input.Name != nil {
		name = strings.TrimSpace(*input.Name)
		if name == "" {
			return store.Document{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{"name": "name cannot be empty"})
		}
	}
	if input.Content != nil && len(*input.Content) > maxContentLength {
		return store.Document{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{"content": fmt.Sprintf("content exceeds %d characters", maxContentLength)})
	}

	updated, err := s.store.UpdateDocument(ctx, documentID, name, input.Content, store.ActivityLog{
		ID:          util.NewID("log"),
		UserID:      session.UserID,
		Action:      "update_document",
		ActionType:  "document",
		ActionID:    documentID,
		Description: fmt.Sprintf("Perbarui dokumen %s", name),
		IPAddress:   ip,
	})
	if err != nil {
		return store.Document{}, err
	}

	if s.search != nil {
		s.search.IndexDocument(search.DocumentRecord{
			ID:          updated.ID,
			UserID:      updated.UserID,
			SectionCode: updated.SectionCode,
			Name:        updated.Name,
			Detail:      updated.Detail,
		})
	}
	return updated, nil
}

func (s *Service) DeleteDocument(ctx context.Context, session Session, documentID, ip string) error {
	doc, err := s.ownedDocument(ctx, session, documentID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteDocument(ctx, documentID, store.ActivityLog{
		ID:          util.NewID("log"),
		UserID:      session.UserID,
		Action:      "delete_document",
		ActionType:  "document",
		ActionID:    documentID,
		Description: fmt.Sprintf("Hapus dokumen %s", doc.Name),
		IPAddress:   ip,
	}); err != nil {
		return err
	}

	if s.storage != nil {
		if err := s.storage.Delete(ctx, doc.ObjectKey); err != nil {
			log.Printf("app: delete object %s: %v", doc.ObjectKey, err)
		}
	}
	if s.search != nil {
		s.search.DeleteDocument(documentID)
	}
	return nil
}

// BulkDeleteDocuments rejects the whole batch when any document belongs to
// someone else or does not exist.
func (s *Service) BulkDeleteDocuments(ctx context.Context, session Session, documentIDs []string, ip string) (int, error) {
	if len(documentIDs) == 0 {
		return 0, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{"document_ids": "at least one document id is required"})
	}

	owners, err := s.store.ListDocumentOwners(ctx, documentIDs)
	if err != nil {
		return 0, err
	}
	for _, id := range documentIDs {
		owner, ok := owners[id]
		if !ok {
			return 0, domainError(http.StatusNotFound, "NOT_FOUND", "Not found", map[string]string{"document_id": id})
		}
		if owner != session.UserID {
			return 0, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		}
	}

	docs := make([]store.Document, 0, len(documentIDs))
	for _, id := range documentIDs {
		doc, err := s.store.GetDocument(ctx, id)
		if err != nil {
			return 0, err
		}
		docs = append(docs, doc)
	}

	deleted, err := s.store.BulkDeleteDocuments(ctx, session.UserID, documentIDs, store.ActivityLog{
		ID:          util.NewID("log"),
		UserID:      session.UserID,
		Action:      "bulk_delete_documents",
		ActionType:  "document",
		Description: fmt.Sprintf("Hapus %d dokumen sekaligus", len(documentIDs)),
		IPAddress:   ip,
	})
	if err != nil {
		return 0, err
	}

	for _, doc := range docs {
		if s.storage != nil {
			if err := s.storage.Delete(ctx, doc.ObjectKey); err != nil {
				log.Printf("app: delete object %s: %v", doc.ObjectKey, err)
			}
		}
		if s.search != nil {
			s.search.DeleteDocument(doc.ID)
		}
	}
	return deleted, nil
}

func (s *Service) DocumentHistory(ctx context.Context, session Session, documentID string) ([]gitrepo.CommitInfo, error) {
	doc, err := s.ownedDocument(ctx, session, documentID)
	if err != nil {
		return nil, err
	}
	if s.git == nil {
		return []gitrepo.CommitInfo{}, nil
	}
	return s.git.History(doc.UserID, doc.SectionCode, doc.Detail, 50)
}

func (s *Service) ownedDocument(ctx context.Context, session Session, documentID string) (store.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return store.Document{}, err
	}
	if doc.UserID != session.UserID {
		return store.Document{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return doc, nil
}

// -- progress & statistics --

func (s *Service) sectionStates(ctx context.Context, userID string) (map[string]ppepp.SectionState, error) {
	sections, err := s.store.ListSections(ctx, userID)
	if err != nil {
		return nil, err
	}
	stageContents, err := s.store.ListStageContents(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountDocumentsByStage(ctx, userID)
	if err != nil {
		return nil, err
	}

	states := make(map[string]ppepp.SectionState)
	for _, section := range sections {
		state := states[section.SectionCode]
		state.Content = section.Content
		states[section.SectionCode] = state
	}
	for _, sc := range stageContents {
		state := states[sc.SectionCode]
		if state.StageContents == nil {
			state.StageContents = make(map[ppepp.Stage]string)
		}
		state.StageContents[ppepp.Stage(sc.Stage)] = sc.Content
		states[sc.SectionCode] = state
	}
	for _, count := range counts {
		state := states[count.SectionCode]
		if state.DocumentCounts == nil {
			state.DocumentCounts = make(map[ppepp.Stage]int)
		}
		state.DocumentCounts[ppepp.Stage(count.Detail)] = count.Count
		states[count.SectionCode] = state
	}
	return states, nil
}

func (s *Service) Progress(ctx context.Context, session Session) (ppepp.Progress, error) {
	states, err := s.sectionStates(ctx, session.UserID)
	if err != nil {
		return ppepp.Progress{}, err
	}
	return ppepp.Evaluate(states), nil
}

// Statistics builds the per-role completion view over the seven
// content-producing roles.
func (s *Service) Statistics(ctx context.Context) (map[string]any, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	usersByRole := make(map[string][]store.User)
	for _, user := range users {
		usersByRole[user.Role] = append(usersByRole[user.Role], user)
	}

	roles := make([]map[string]any, 0, len(rbac.StatisticsRoles))
	for _, role := range rbac.StatisticsRoles {
		roleUsers := usersByRole[string(role)]
		sort.Slice(roleUsers, func(i, j int) bool { return roleUsers[i].Name < roleUsers[j].Name })

		userEntries := make([]map[string]any, 0, len(roleUsers))
		percentSum := 0
		for _, user := range roleUsers {
			states, err := s.sectionStates(ctx, user.ID)
			if err != nil {
				return nil, err
			}
			progress := ppepp.Evaluate(states)
			percentSum += progress.Percent
			userEntries = append(userEntries, map[string]any{
				"user_id":  user.ID,
				"name":     user.Name,
				"progress": progress,
				"sections": ppepp.Breakdown(states),
			})
		}

		average := 0
		if len(roleUsers) > 0 {
			average = percentSum / len(roleUsers)
		}
		roles = append(roles, map[string]any{
			"role":             string(role),
			"users":            userEntries,
			"average_progress": average,
		})
	}

	return map[string]any{"roles": roles}, nil
}

// -- search --

func (s *Service) Search(session Session, text, filterType string, limit, offset int) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}
	}
	return s.search.Search(search.Query{
		Text:       text,
		UserID:     session.UserID,
		FilterType: search.ResultType(filterType),
		Limit:      limit,
		Offset:     offset,
	})
}

// -- events & notifications --

type EventInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Color       string     `json:"color"`
}

func (s *Service) CreateEvent(ctx context.Context, session Session, input EventInput, ip string) (store.Event, error) {
	if strings.TrimSpace(input.Title) == "" {
		return store.Event{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{"title": "title is required"})
	}
	if input.StartDate.IsZero() {
		return store.Event{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{"start_date": "start date is required"})
	}
	if input.EndDate != nil && input.EndDate.Before(input.StartDate) {
		return store.Event{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{"end_date": "end date is before start date"})
	}

	color := input.Color
	if color == "" {
		color = "#3B82F6"
	}
	event := store.Event{
		ID:          util.NewID("evt"),
		UserID:      session.UserID,
		Title:       input.Title,
		Description: input.Description,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Color:       color,
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return store.Event{}, err
	}
	notifications := make([]store.Notification, 0, len(users))
	for _, user := range users {
		notifications = append(notifications, store.Notification{
			ID:      util.NewID("ntf"),
			UserID:  user.ID,
			EventID: event.ID,
			Title:   "Agenda baru",
			Message: fmt.Sprintf("%s pada %s", event.Title, event.StartDate.Format("2 January 2006")),
			Type:    "event",
			Role:    user.Role,
		})
	}

	if err := s.store.CreateEvent(ctx, event, notifications, store.ActivityLog{
		ID:          util.NewID("log"),
		UserID:      session.UserID,
		Action:      "create_event",
		ActionType:  "event",
		ActionID:    event.ID,
		Description: fmt.Sprintf("Buat agenda %s", event.Title),
		IPAddress:   ip,
	}); err != nil {
		return store.Event{}, err
	}

	if s.email != nil && s.email.IsConfigured() {
		go s.announceEvent(event, users)
	}
	return event, nil
}

func (s *Service) announceEvent(event store.Event, users []store.User) {
	startDate := event.StartDate.Format("2 January 2006")
	for _, user := range users {
		if user.Email == "" {
			continue
		}
		if err := s.email.SendEventAnnouncementEmail(user.Email, event.Title, event.Description, startDate); err != nil {
			log.Printf("app: announce event %s to %s: %v", event.ID, user.Email, err)
		}
	}
}

func (s *Service) Events(ctx context.Context, year int, month time.Month) ([]store.Event, error) {
	return s.store.ListEventsByMonth(ctx, year, month)
}

func (s *Service) UpdateEvent(ctx context.Context, session Session, eventID string, input EventInput, ip string) (store.Event, error) {
	existing, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return store.Event{}, err
	}
	if existing.UserID != session.UserID {
		return store.Event{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if strings.TrimSpace(input.Title) == "" {
		return store.Event{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{"title": "title is required"})
	}

	existing.Title = input.Title
	existing.Description = input.Description
	if !input.StartDate.IsZero() {
		existing.StartDate = input.StartDate
	}
	if input.EndDate != nil {
		existing.EndDate = input.EndDate
	}
	if input.Color != "" {
		existing.Color = input.Color
	}
	if existing.EndDate != nil && existing.EndDate.Before(existing.StartDate) {
		return store.Event{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{"end_date": "end date is before start date"})
	}

	return s.store.UpdateEvent(ctx, existing, store.ActivityLog{
		ID:          util.NewID("log"),
		UserID:      session.UserID,
		Action:      "update_event",
		ActionType:  "event",
		ActionID:    eventID,
		Description: fmt.Sprintf("Perbarui agenda %s", existing.Title),
		IPAddress:   ip,
	})
}

func (s *Service) DeleteEvent(ctx context.Context, session Session, eventID, ip string) error {
	existing, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if existing.UserID != session.UserID {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return s.store.DeleteEvent(ctx, eventID, store.ActivityLog{
		ID:          util.NewID("log"),
		UserID:      session.UserID,
		Action:      "delete_event",
		ActionType:  "event",
		ActionID:    eventID,
		Description: fmt.Sprintf("Hapus agenda %s", existing.Title),
		IPAddress:   ip,
	})
}

func (s *Service) Notifications(ctx context.Context, session Session) ([]store.Notification, error) {
	return s.store.ListNotificationsByUser(ctx, session.UserID)
}

func (s *Service) UnreadNotifications(ctx context.Context, session Session) (int, error) {
	return s.store.CountUnreadNotifications(ctx, session.UserID)
}

func (s *Service) MarkNotificationRead(ctx context.Context, session Session, notificationID string) error {
	return s.store.MarkNotificationRead(ctx, session.UserID, notificationID)
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, session Session) error {
	return s.store.MarkAllNotificationsRead(ctx, session.UserID)
}

// -- activity logs & users --

func (s *Service) ActivityLogs(ctx context.Context, page int) (map[string]any, error) {
	if page < 1 {
		page = 1
	}
	logs, total, err := s.store.ListActivityLogs(ctx, activityPageSize, (page-1)*activityPageSize)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"logs":      logPayloads(logs),
		"total":     total,
		"page":      page,
		"page_size": activityPageSize,
	}, nil
}

func (s *Service) MyActivityLogs(ctx context.Context, session Session) ([]map[string]any, error) {
	logs, err := s.store.ListActivityLogsByUser(ctx, session.UserID, activityPageSize, 0)
	if err != nil {
		return nil, err
	}
	return logPayloads(logs), nil
}

func (s *Service) Users(ctx context.Context) ([]map[string]any, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(users))
	for _, user := range users {
		out = append(out, userPayload(user))
	}
	return out, nil
}

// CheckEmail reports whether an email is still free to register with.
func (s *Service) CheckEmail(ctx context.Context, emailAddr string) (bool, error) {
	_, err := s.store.GetUserByEmail(ctx, emailAddr)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// -- helpers --

func (s *Service) logActivity(ctx context.Context, entry store.ActivityLog) {
	if err := s.store.InsertActivityLog(ctx, entry); err != nil {
		log.Printf("app: insert activity log: %v", err)
	}
}

func userPayload(user store.User) map[string]any {
	return map[string]any{
		"id":         user.ID,
		"name":       user.Name,
		"email":      user.Email,
		"role":       user.Role,
		"created_at": user.CreatedAt,
	}
}

func documentPayload(doc store.Document) map[string]any {
	return map[string]any{
		"id":           doc.ID,
		"section_code": doc.SectionCode,
		"name":         doc.Name,
		"content_type": doc.ContentType,
		"size":         doc.Size,
		"status":       doc.Status,
		"detail":       doc.Detail,
		"created_at":   doc.CreatedAt,
		"updated_at":   doc.UpdatedAt,
	}
}

func logPayloads(logs []store.ActivityLog) []map[string]any {
	out := make([]map[string]any, 0, len(logs))
	for _, entry := range logs {
		out = append(out, map[string]any{
			"id":          entry.ID,
			"user_id":     entry.UserID,
			"user_name":   entry.UserName,
			"action":      entry.Action,
			"action_type": entry.ActionType,
			"action_id":   entry.ActionID,
			"description": entry.Description,
			"ip_address":  entry.IPAddress,
			"created_at":  entry.CreatedAt,
		})
	}
	return out
}

func eventPayload(event store.Event) map[string]any {
	return map[string]any{
		"id":          event.ID,
		"user_id":     event.UserID,
		"title":       event.Title,
		"description": event.Description,
		"start_date":  event.StartDate,
		"end_date":    event.EndDate,
		"color":       event.Color,
		"created_at":  event.CreatedAt,
		"updated_at":  event.UpdatedAt,
	}
}

func notificationPayload(n store.Notification) map[string]any {
	return map[string]any{
		"id":           n.ID,
		"event_id":     n.EventID,
		"title":        n.Title,
		"message":      n.Message,
		"type":         n.Type,
		"is_read":      n.IsRead,
		"scheduled_at": n.ScheduledAt,
		"created_at":   n.CreatedAt,
	}
}
