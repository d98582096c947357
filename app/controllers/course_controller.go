package controllers

import (
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CourseHaven/internal/pkg/apperror"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/catalog"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/upload"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/usercontext"
)

type CourseController struct {
	catalog *catalog.Service
}

func NewCourseController(catalogService *catalog.Service) *CourseController {
	return &CourseController{catalog: catalogService}
}

func (cc *CourseController) HandleListCourses(c *fiber.Ctx) error {
	courses, err := cc.catalog.List(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"courses": courses})
}

func (cc *CourseController) HandleGetCourse(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "courseId")
	if err != nil {
		return respondError(c, err)
	}
	course, err := cc.catalog.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"course": course})
}

// HandleCreateCourse accepts a multipart form with title, description, price
// and the cover image in the "image" field.
func (cc *CourseController) HandleCreateCourse(c *fiber.Ctx) error {
	price, err := parsePrice(c.FormValue("price"))
	if err != nil {
		return respondError(c, err)
	}
	image, err := readImage(c, "image")
	if err != nil {
		return respondError(c, err)
	}

	course, err := cc.catalog.Create(c.UserContext(), usercontext.GetAccount(c), catalog.CourseInput{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Price:       price,
		Image:       image,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Course created successfully",
		"course":  course,
	})
}

// HandleUpdateCourse changes only the form fields that were sent. A new cover
// may come as "image" or "imageUrl".
func (cc *CourseController) HandleUpdateCourse(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "courseId")
	if err != nil {
		return respondError(c, err)
	}

	var patch catalog.CoursePatch
	if v, ok := formValue(c, "title"); ok {
		patch.Title = &v
	}
	if v, ok := formValue(c, "description"); ok {
		patch.Description = &v
	}
	if v, ok := formValue(c, "price"); ok {
		price, err := parsePrice(v)
		if err != nil {
			return respondError(c, err)
		}
		patch.Price = &price
	}
	if patch.Image, err = readImage(c, "image", "imageUrl"); err != nil {
		return respondError(c, err)
	}

	course, err := cc.catalog.Update(c.UserContext(), usercontext.GetAccount(c), id, patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Course updated successfully",
		"course":  course,
	})
}

func (cc *CourseController) HandleDeleteCourse(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "courseId")
	if err != nil {
		return respondError(c, err)
	}
	if err := cc.catalog.Delete(c.UserContext(), usercontext.GetAccount(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Course deleted successfully"})
}

func formValue(c *fiber.Ctx, key string) (string, bool) {
	v := strings.TrimSpace(c.FormValue(key))
	return v, v != ""
}

func parsePrice(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, apperror.Validation("Price is required")
	}
	price, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || price <= 0 {
		return 0, apperror.Validation("Price must be a positive whole number")
	}
	return price, nil
}

// readImage returns the first uploaded file among fields, or nil when the
// request carries none.
func readImage(c *fiber.Ctx, fields ...string) (*catalog.ImageUpload, error) {
	for _, field := range fields {
		fh, err := c.FormFile(field)
		if err != nil || fh == nil {
			continue
		}
		if fh.Size > upload.MaxImageBytes {
			return nil, apperror.Validation("Course image is too large")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, apperror.Wrap(apperror.KindValidation, "Course image could not be read", err)
		}
		data, err := io.ReadAll(io.LimitReader(f, upload.MaxImageBytes+1))
		_ = f.Close()
		if err != nil {
			return nil, apperror.Wrap(apperror.KindValidation, "Course image could not be read", err)
		}
		return &catalog.ImageUpload{Filename: fh.Filename, Data: data}, nil
	}
	return nil, nil
}
