package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockledger/backend/internal/interfaces/http/dto"
)

type voxelBody struct {
	VoxelID string   `json:"voxel_id" binding:"required,max=4"`
	Mode    string   `json:"mode" binding:"omitempty,oneof=onload offload"`
	Items   []string `json:"items" binding:"omitempty,min=2"`
}

func bindEngine() *gin.Engine {
	SetupValidator()
	r := gin.New()
	r.Use(RequestID())
	r.POST("/bind", func(c *gin.Context) {
		var body voxelBody
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})
	return r
}

func TestHandleValidationError(t *testing.T) {
	r := bindEngine()

	w := serve(r, httptest.NewRequest(http.MethodPost, "/bind",
		strings.NewReader(`{"voxel_id":"TOOLONG","mode":"sideways","items":["a"]}`)))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.RequestID)

	messages := map[string]string{}
	for _, d := range resp.Error.Details {
		messages[d.Field] = d.Message
	}
	assert.Equal(t, "Must be at most 4 characters", messages["voxel_id"])
	assert.Equal(t, "Must be one of: onload offload", messages["mode"])
	assert.Equal(t, "Must have at least 2 elements", messages["items"])
}

func TestHandleValidationError_MalformedJSON(t *testing.T) {
	r := bindEngine()
	w := serve(r, httptest.NewRequest(http.MethodPost, "/bind", strings.NewReader(`{"voxel_id":`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_VALIDATION")
}
