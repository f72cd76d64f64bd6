package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sungreong/TaskWeaver/internal/middleware"
	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const JWTSecret = "taskweaver-test-secret"

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
	T      *testing.T
}

// SetupTestDB opens a private in-memory SQLite database and migrates every table.
// A single connection keeps the in-memory database alive for the whole test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(entity.AllModels()...); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// SetupRouter creates a gin router in test mode
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"uid":  userID,
		"name": name,
		"iss":  "taskweaver",
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// DoUpload posts content as the multipart form field "file".
func DoUpload(r *gin.Engine, path, filename string, content []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", filename)
	part.Write(content)
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// Data returns the "data" object of an envelope response
func Data(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	data, ok := ParseResponse(w)["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected object data, got: %s", w.Body.String())
	}
	return data
}

// List returns the "data" array of an envelope response
func List(t *testing.T, w *httptest.ResponseRecorder) []interface{} {
	t.Helper()
	data, ok := ParseResponse(w)["data"].([]interface{})
	if !ok {
		t.Fatalf("Expected array data, got: %s", w.Body.String())
	}
	return data
}

// SeedProject creates a project
func SeedProject(t *testing.T, db *gorm.DB, name string) *entity.Project {
	t.Helper()
	now := time.Now()
	project := &entity.Project{
		Name:      name,
		Status:    entity.ProjectStatusActive,
		Priority:  entity.PriorityMedium,
		Manager:   "manager",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("Failed to seed project: %v", err)
	}
	return project
}

// SeedReport creates a weekly report
func SeedReport(t *testing.T, db *gorm.DB, projectID uint, week, stage string, issues *string) *entity.WeeklyReport {
	t.Helper()
	now := time.Now()
	report := &entity.WeeklyReport{
		ProjectID:    projectID,
		Week:         week,
		Stage:        stage,
		ThisWeekWork: fmt.Sprintf("%s %s work", week, stage),
		IssuesRisks:  issues,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.Create(report).Error; err != nil {
		t.Fatalf("Failed to seed report: %v", err)
	}
	return report
}

// SeedTask creates a detailed task
func SeedTask(t *testing.T, db *gorm.DB, projectID uint, item, assignee string, progress float64) *entity.DetailedTask {
	t.Helper()
	now := time.Now()
	task := &entity.DetailedTask{
		ProjectID:     projectID,
		Stage:         "개발",
		TaskItem:      item,
		Assignee:      assignee,
		CurrentStatus: entity.TaskStatusInProgress,
		ProgressRate:  progress,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("Failed to seed task: %v", err)
	}
	return task
}

// SeedWBS creates a WBS node
func SeedWBS(t *testing.T, db *gorm.DB, projectID uint, parentID *uint, text string, sortOrder int) *entity.WBSTask {
	t.Helper()
	now := time.Now()
	task := &entity.WBSTask{
		ProjectID: projectID,
		ParentID:  parentID,
		Text:      text,
		SortOrder: sortOrder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("Failed to seed wbs task: %v", err)
	}
	return task
}
