package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clinica-server/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const (
	testPatientID = "11111111-1111-1111-1111-111111111111"
	testDoctorID  = "22222222-2222-2222-2222-222222222222"
	testAdminID   = "33333333-3333-3333-3333-333333333333"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestDB opens a gorm connection backed by sqlmock. The default
// transaction is disabled so tests only set Begin/Commit expectations
// where the code opens a transaction itself.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return db, mock
}

// authAs injects the authenticated caller into the gin context the way
// the JWT middleware does.
func authAs(userID string, role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Set("userRole", role)
		c.Next()
	}
}

func doRequest(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func userRow(id string, role models.Role) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "role", "first_name", "last_name"}).
		AddRow(id, string(role)+"@example.com", string(role), "Test", "User")
}
