// Package api is the HTTP control surface of the controller.
package api

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/creatorstation/radarlcd/internal/fetch"
	"github.com/creatorstation/radarlcd/internal/frame"
	"github.com/gofiber/fiber/v2"
)

type Frames interface {
	Snapshot() frame.Window
	Staged() frame.Window
	Latest() (frame.Identity, error)
}

type Fetcher interface {
	Start(ctx context.Context) error
	Status() fetch.Status
}

type Artifacts interface {
	Read(id frame.Identity) ([]byte, error)
}

// Pressable latches a virtual trigger press.
type Pressable interface {
	Press()
}

// Screen exposes the last rendered frame.
type Screen interface {
	Frame() ([]byte, *float64, bool)
}

type Deps struct {
	// Context bounds background fetch cycles started over HTTP.
	Context   context.Context
	Frames    Frames
	Artifacts Artifacts
	Fetcher   Fetcher
	Trigger   Pressable
	Screen    Screen
	Location  *time.Location
}

type controller struct {
	Deps
}

func MountController(router fiber.Router, deps Deps) {
	if deps.Context == nil {
		deps.Context = context.Background()
	}
	c := &controller{Deps: deps}

	router.Get("/status", c.status)
	router.Post("/fetch/run", c.runFetch)
	router.Get("/frames/:key", c.cachedFrame)
	if c.Trigger != nil {
		router.Post("/trigger", c.trigger)
	}
	if c.Screen != nil {
		router.Get("/display/frame.png", c.displayFrame)
	}
}

type statusResponse struct {
	Latest string   `json:"latest,omitempty"`
	Window []string `json:"window"`
	Staged []string `json:"staged"`
	fetch.Status
}

func (c *controller) status(ctx *fiber.Ctx) error {
	resp := statusResponse{
		Window: c.Frames.Snapshot().Keys(),
		Staged: c.Frames.Staged().Keys(),
		Status: c.Fetcher.Status(),
	}
	if latest, err := c.Frames.Latest(); err == nil {
		resp.Latest = latest.Key()
	}
	return ctx.JSON(resp)
}

func (c *controller) runFetch(ctx *fiber.Ctx) error {
	if err := c.Fetcher.Start(c.Context); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, fetch.ErrCycleInProgress) {
			status = fiber.StatusConflict
		}
		return ctx.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	log.Println("Fetch cycle started over HTTP")
	return ctx.JSON(fiber.Map{
		"message": "Fetch cycle started",
	})
}

func (c *controller) trigger(ctx *fiber.Ctx) error {
	c.Trigger.Press()
	return ctx.JSON(fiber.Map{
		"message": "Trigger pressed",
	})
}

func (c *controller) cachedFrame(ctx *fiber.Ctx) error {
	var params FrameKeyParams
	if err := ctx.ParamsParser(&params); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := params.Validate(); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	id, err := frame.ParseKey(params.Key, c.Location)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	data, err := c.Artifacts.Read(id)
	if errors.Is(err, os.ErrNotExist) {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "frame " + params.Key + " is not cached",
		})
	}
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	ctx.Context().SetContentType("image/png")
	return ctx.Status(fiber.StatusOK).Send(data)
}

func (c *controller) displayFrame(ctx *fiber.Ctx) error {
	data, progress, ok := c.Screen.Frame()
	if !ok {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "nothing rendered yet",
		})
	}

	if progress != nil {
		ctx.Set("X-Progress", strconv.FormatFloat(*progress, 'f', 3, 64))
	}
	ctx.Set(fiber.HeaderCacheControl, "no-store")
	ctx.Context().SetContentType("image/png")
	return ctx.Status(fiber.StatusOK).Send(data)
}
