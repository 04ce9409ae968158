package handler

import (
	"context"
	"database/sql"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"photostore/internal/service"
)

// OwnerHeader carries the calling user's identity. Requests without it act
// as the anonymous owner.
const OwnerHeader = "X-User-ID"

const anonymousOwner = "anonymous"

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Keep handlers minimal and free of business logic.
func RegisterRoutes(app *fiber.App, db *sql.DB, photoSvc service.PhotoService) {
	// Health endpoint: checks DB connectivity only
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	})

	// Simple liveness probe
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	photos := app.Group("/photos")

	// Upload a single photo (multipart/form-data, field name: file)
	photos.Post("/upload", func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		resp, err := photoSvc.Upload(c.UserContext(), service.UploadFile{
			Filename: fh.Filename,
			Size:     fh.Size,
			Reader:   f,
		}, ownerID(c), c.FormValue("description"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(resp)
	})

	// Upload several photos at once (multipart/form-data, field name: files)
	photos.Post("/upload/batch", func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil || len(form.File["files"]) == 0 {
			return writeError(c, fiber.StatusBadRequest, "FILES_REQUIRED", "at least one file is required")
		}

		files, closeAll, err := openUploads(form.File["files"])
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer closeAll()

		resps, err := photoSvc.UploadBatch(c.UserContext(), files, ownerID(c), c.FormValue("description"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"uploaded": len(resps),
			"skipped":  len(form.File["files"]) - len(resps),
			"photos":   resps,
		})
	})

	// Serve the original bytes inline
	photos.Get("/view/:key", func(c *fiber.Ctx) error {
		content, err := photoSvc.View(c.UserContext(), c.Params("key"))
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Set(fiber.HeaderContentType, content.ContentType)
		return c.Send(content.Data)
	})

	// Serve the thumbnail
	photos.Get("/thumbnail/:key", func(c *fiber.Ctx) error {
		content, err := photoSvc.Thumbnail(c.UserContext(), c.Params("key"))
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Set(fiber.HeaderContentType, content.ContentType)
		return c.Send(content.Data)
	})

	// Serve the original bytes as an attachment
	photos.Get("/download/:key", func(c *fiber.Ctx) error {
		content, err := photoSvc.Download(c.UserContext(), c.Params("key"))
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Set(fiber.HeaderContentType, content.ContentType)
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+content.Filename+`"`)
		return c.Send(content.Data)
	})

	// Serve a byte subrange of the original (Range: bytes=start-end).
	// The header is optional: without it the full bytes are served with 200.
	photos.Get("/download/range/:key", func(c *fiber.Ctx) error {
		rangeHeader := c.Get(fiber.HeaderRange)

		start, end := int64(0), int64(-1)
		if rangeHeader != "" {
			var err error
			start, end, err = parseRangeHeader(rangeHeader)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_RANGE", "malformed Range header")
			}
		}

		rc, err := photoSvc.ReadRange(c.UserContext(), c.Params("key"), start, end)
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Set(fiber.HeaderContentType, rc.ContentType)
		if rangeHeader == "" {
			return c.Send(rc.Data)
		}
		c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", rc.Start, rc.End, rc.TotalSize))
		return c.Status(fiber.StatusPartialContent).Send(rc.Data)
	})

	// Listings and search; register before /:id so literal segments win
	photos.Get("/public", func(c *fiber.Ctx) error {
		res, err := photoSvc.ListPublic(c.UserContext(), c.QueryInt("page", 0), c.QueryInt("size", 20))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	})

	photos.Get("/popular", func(c *fiber.Ctx) error {
		res, err := photoSvc.ListPopular(c.UserContext(), c.QueryInt("page", 0), c.QueryInt("size", 20))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	})

	photos.Get("/search", func(c *fiber.Ctx) error {
		keyword := c.Query("keyword")
		if keyword == "" {
			return writeError(c, fiber.StatusBadRequest, "KEYWORD_REQUIRED", "query parameter keyword is required")
		}
		res, err := photoSvc.Search(c.UserContext(), keyword, c.QueryInt("page", 0), c.QueryInt("size", 20))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	})

	photos.Get("/user/:userId", func(c *fiber.Ctx) error {
		res, err := photoSvc.ListByOwner(c.UserContext(), c.Params("userId"), c.QueryInt("page", 0), c.QueryInt("size", 20))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	})

	photos.Get("/user/:userId/usage", func(c *fiber.Ctx) error {
		usage, err := photoSvc.OwnerUsage(c.UserContext(), c.Params("userId"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(usage)
	})

	photos.Get("/storage/info", func(c *fiber.Ctx) error {
		info, err := photoSvc.StorageInfo(c.UserContext())
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(info)
	})

	// Metadata lookup by record id
	photos.Get("/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		dto, err := photoSvc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(dto)
	})

	// Soft delete: record hidden, bytes kept
	photos.Delete("/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := photoSvc.Delete(c.UserContext(), id, ownerID(c)); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	// Permanent delete: bytes, thumbnail, and record removed
	photos.Delete("/:id/permanent", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := photoSvc.PermanentDelete(c.UserContext(), id, ownerID(c)); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// ownerID resolves the caller identity: the X-User-ID header, then a user_id
// form or query value, then the anonymous owner.
func ownerID(c *fiber.Ctx) string {
	if id := c.Get(OwnerHeader); id != "" {
		return id
	}
	if id := c.FormValue("user_id"); id != "" {
		return id
	}
	if id := c.Query("user_id"); id != "" {
		return id
	}
	return anonymousOwner
}

// openUploads opens every multipart file header and returns a single closer
// for all of them.
func openUploads(headers []*multipart.FileHeader) ([]service.UploadFile, func(), error) {
	files := make([]service.UploadFile, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		opened = append(opened, f)
		files = append(files, service.UploadFile{Filename: fh.Filename, Size: fh.Size, Reader: f})
	}
	return files, closeAll, nil
}

// parseRangeHeader parses a single-range "bytes=start-end" header. An open
// end ("bytes=start-") yields end = -1, meaning through the last byte.
func parseRangeHeader(h string) (start, end int64, err error) {
	if !strings.HasPrefix(h, "bytes=") {
		return 0, 0, fmt.Errorf("missing bytes= prefix")
	}
	spec := strings.TrimPrefix(h, "bytes=")
	if strings.Contains(spec, ",") {
		return 0, 0, fmt.Errorf("multiple ranges not supported")
	}

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 || parts[0] == "" {
		return 0, 0, fmt.Errorf("malformed range spec %q", spec)
	}

	start, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil || start < 0 {
		return 0, 0, fmt.Errorf("malformed range start %q", parts[0])
	}

	end = int64(-1)
	if parts[1] != "" {
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil || end < start {
			return 0, 0, fmt.Errorf("malformed range end %q", parts[1])
		}
	}
	return start, end, nil
}
