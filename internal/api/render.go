package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"n8n-ingest/backend/internal/auth"
	"n8n-ingest/backend/internal/render"
)

// RenderPDF renders the posted HTML. With ?return=base64 the PDF comes back
// in a JSON envelope, otherwise as the raw document.
// (POST /render/pdf)
func (h *Handler) RenderPDF(c echo.Context) error {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		return auth.ErrUnauthenticated
	}

	req := render.NewRequest()
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := h.renderer.Render(c.Request().Context(), id, &req)
	if err != nil {
		return err
	}

	if wantsBase64(c) {
		return c.JSON(http.StatusOK, result.Envelope())
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, "inline; filename="+result.FileName)
	return c.Blob(http.StatusOK, render.MimeTypePDF, result.PDF)
}

// wantsBase64 also accepts the return_ spelling older n8n flows send.
func wantsBase64(c echo.Context) bool {
	return c.QueryParam("return") == "base64" || c.QueryParam("return_") == "base64"
}
