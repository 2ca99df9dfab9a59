package handler_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/creatorhub-api/internal/dto"
	"github.com/noah-isme/creatorhub-api/internal/utils"
)

func sendInbox(t *testing.T, app *fiber.App, method, path string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, "/api/v1/users/creator-1/notifications"+path, nil), -1)
	require.NoError(t, err)
	return resp
}

func TestNotificationHandlerInboxFlow(t *testing.T) {
	env := setupEvaluationApp(t)
	require.Equal(t, fiber.StatusOK, postEvaluate(t, env.app, "sub-1", `{"gigId":"gig-1"}`).StatusCode)

	resp := sendInbox(t, env.app, http.MethodGet, "/unread")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var unread struct {
		Data struct {
			Unread int64 `json:"unread"`
		} `json:"data"`
	}
	decodeBody(t, resp, &unread)
	require.Equal(t, int64(1), unread.Data.Unread)

	resp = sendInbox(t, env.app, http.MethodGet, "?submissionId=sub-1&limit=10")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var inbox struct {
		Data dto.NotificationListResponse `json:"data"`
	}
	decodeBody(t, resp, &inbox)
	require.Len(t, inbox.Data.Items, 1)
	require.Equal(t, "sub-1", inbox.Data.Items[0].SubmissionID)

	resp = sendInbox(t, env.app, http.MethodPatch, fmt.Sprintf("/%d/read", inbox.Data.Items[0].ID))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var marked struct {
		Data dto.NotificationResponse `json:"data"`
	}
	decodeBody(t, resp, &marked)
	require.True(t, marked.Data.Read)

	resp = sendInbox(t, env.app, http.MethodPost, "/read-all")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var readAll struct {
		Data dto.NotificationReadAllResponse `json:"data"`
	}
	decodeBody(t, resp, &readAll)
	require.Zero(t, readAll.Data.Updated)
}

func TestNotificationHandlerErrors(t *testing.T) {
	env := setupEvaluationApp(t)

	cases := []struct {
		name   string
		method string
		path   string
		status int
		code   string
	}{
		{name: "non numeric id", method: http.MethodPatch, path: "/abc/read", status: fiber.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "unknown id", method: http.MethodPatch, path: "/999/read", status: fiber.StatusNotFound, code: "NOT_FOUND"},
		{name: "limit out of range", method: http.MethodGet, path: "?limit=500", status: fiber.StatusBadRequest, code: "INVALID_ARGUMENT"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := sendInbox(t, env.app, tc.method, tc.path)
			require.Equal(t, tc.status, resp.StatusCode)
			var payload utils.ErrorResponse
			decodeBody(t, resp, &payload)
			require.False(t, payload.Success)
			require.Equal(t, tc.code, payload.Code)
		})
	}
}
