// Package catalog manages the course catalog. Mutations are admin only and
// invalidate the cached course list.
package catalog

import (
	"bytes"
	"context"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseHaven/app/models"
	"github.com/ManuelReschke/CourseHaven/app/repository"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/apperror"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/auth"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/database"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/imageprocessor"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/objectstore"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/upload"
)

var (
	ErrForbidden     = apperror.Forbidden("Admin access required")
	ErrCourseMissing = apperror.NotFound("Course not found")
)

// ImageStore persists processed cover images.
type ImageStore interface {
	Put(ctx context.Context, data []byte, contentType, ext string) (*objectstore.StoredObject, error)
	Delete(ctx context.Context, key string) error
}

// EntitlementCounter tells the deletion policy whether a course was sold.
type EntitlementCounter interface {
	CountForCourse(ctx context.Context, courseID uint) (int64, error)
}

// ListCache holds the rendered course list between mutations.
type ListCache interface {
	Load(ctx context.Context) ([]models.Course, bool, error)
	Store(ctx context.Context, courses []models.Course) error
	Invalidate(ctx context.Context) error
}

// ImageUpload is a raw uploaded file.
type ImageUpload struct {
	Filename string
	Data     []byte
}

type CourseInput struct {
	Title       string
	Description string
	Price       int64
	Image       *ImageUpload
}

// CoursePatch carries the fields an update changes; nil means unchanged.
type CoursePatch struct {
	Title       *string
	Description *string
	Price       *int64
	Image       *ImageUpload
}

type Service struct {
	courses      repository.CourseRepository
	entitlements EntitlementCounter
	images       ImageStore
	cache        ListCache
}

// NewService wires the catalog. images and cache may be nil; without an
// image store create and image updates fail, without a cache every list
// reads the database.
func NewService(courses repository.CourseRepository, entitlements EntitlementCounter, images ImageStore, cache ListCache) *Service {
	return &Service{
		courses:      courses,
		entitlements: entitlements,
		images:       images,
		cache:        cache,
	}
}

func requireAdmin(actor *auth.AccountContext) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// Get reads a visible course straight from the database.
func (s *Service) Get(ctx context.Context, id uint) (*models.Course, error) {
	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrCourseMissing
		}
		return nil, apperror.Internal("failed to load course", err)
	}
	return course, nil
}

// List returns the visible catalog, newest first.
func (s *Service) List(ctx context.Context) ([]models.Course, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Load(ctx)
		if err != nil {
			log.Warnf("[Catalog] list cache read failed: %v", err)
		} else if ok {
			return cached, nil
		}
	}

	courses, err := s.courses.List(ctx)
	if err != nil {
		return nil, apperror.Internal("failed to list courses", err)
	}

	if s.cache != nil {
		if err := s.cache.Store(ctx, courses); err != nil {
			log.Warnf("[Catalog] list cache write failed: %v", err)
		}
	}
	return courses, nil
}

func (s *Service) Create(ctx context.Context, actor *auth.AccountContext, in CourseInput) (*models.Course, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	course := &models.Course{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		CreatorID:   actor.AccountID,
	}
	if err := course.Validate(); err != nil {
		return nil, apperror.FromValidator(err)
	}
	if in.Image == nil || len(in.Image.Data) == 0 {
		return nil, apperror.Validation("Course image is required")
	}

	stored, err := s.storeImage(ctx, in.Image)
	if err != nil {
		return nil, err
	}
	course.Image = models.CourseImage{URL: stored.URL, Key: stored.Key}

	if err := s.courses.Create(ctx, course); err != nil {
		s.discardImage(ctx, stored.Key)
		return nil, apperror.Internal("failed to create course", err)
	}

	s.invalidate(ctx)
	log.Infof("[Catalog] admin %d created course %d", actor.AccountID, course.ID)
	return course, nil
}

func (s *Service) Update(ctx context.Context, actor *auth.AccountContext, id uint, patch CoursePatch) (*models.Course, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		course.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		course.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Price != nil {
		course.Price = *patch.Price
	}
	if err := course.Validate(); err != nil {
		return nil, apperror.FromValidator(err)
	}

	oldKey := ""
	var stored *objectstore.StoredObject
	if patch.Image != nil && len(patch.Image.Data) > 0 {
		stored, err = s.storeImage(ctx, patch.Image)
		if err != nil {
			return nil, err
		}
		oldKey = course.Image.Key
		course.Image = models.CourseImage{URL: stored.URL, Key: stored.Key}
	}

	if err := s.courses.Update(ctx, course); err != nil {
		if stored != nil {
			s.discardImage(ctx, stored.Key)
		}
		return nil, apperror.Internal("failed to update course", err)
	}

	if oldKey != "" {
		s.discardImage(ctx, oldKey)
	}
	s.invalidate(ctx)
	log.Infof("[Catalog] admin %d updated course %d", actor.AccountID, course.ID)
	return course, nil
}

// Delete removes a course. Sold courses are soft deleted so purchase history
// keeps them; unsold courses and their images are removed for good.
func (s *Service) Delete(ctx context.Context, actor *auth.AccountContext, id uint) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	course, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	sold, err := s.entitlements.CountForCourse(ctx, id)
	if err != nil {
		return err
	}

	if sold > 0 {
		if err := s.courses.SoftDelete(ctx, id); err != nil {
			return apperror.Internal("failed to delete course", err)
		}
		log.Infof("[Catalog] admin %d soft deleted course %d (%d purchases)", actor.AccountID, id, sold)
	} else {
		if err := s.courses.HardDelete(ctx, id); err != nil {
			return apperror.Internal("failed to delete course", err)
		}
		s.discardImage(ctx, course.Image.Key)
		log.Infof("[Catalog] admin %d deleted course %d", actor.AccountID, id)
	}

	s.invalidate(ctx)
	return nil
}

func (s *Service) storeImage(ctx context.Context, img *ImageUpload) (*objectstore.StoredObject, error) {
	if len(img.Data) > upload.MaxImageBytes {
		return nil, apperror.Validation("Course image is too large")
	}
	head := img.Data
	if len(head) > 512 {
		head = head[:512]
	}
	if _, err := upload.ValidateImageBySniff(img.Filename, head); err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, err.Error(), err)
	}

	cover, err := imageprocessor.NormalizeCover(bytes.NewReader(img.Data))
	if err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, "Course image could not be read", err)
	}

	if s.images == nil {
		return nil, apperror.Internal("image storage is not configured", nil)
	}
	stored, err := s.images.Put(ctx, cover, imageprocessor.CoverContentType, imageprocessor.CoverExtension)
	if err != nil {
		return nil, apperror.Internal("failed to store course image", err)
	}
	return stored, nil
}

func (s *Service) discardImage(ctx context.Context, key string) {
	if key == "" || s.images == nil {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		log.Warnf("[Catalog] failed to delete image %s: %v", key, err)
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		log.Warnf("[Catalog] list cache invalidation failed: %v", err)
	}
}
