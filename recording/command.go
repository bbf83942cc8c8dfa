// Package recording provides a vector surface that records drawing
// operations instead of rasterizing them.
//
// A Recorder implements surface.Surface with IsVector reporting true, so
// the drawing pipeline emits glyph outlines as paths rather than
// rasterized masks. The finished Recording is immutable and can be played
// back onto any surface at any scale.
//
// Resources (paths, images, masks) are stored in a ResourcePool and
// referenced by typed handles (PathRef, ImageRef, MaskRef).
//
// # Example
//
//	rec := recording.NewRecorder(800, 600)
//	render.DrawRange(ctx, render.Params{Frame: f, Range: f.FullRange(), Target: rec})
//	r := rec.FinishRecording()
//
//	// Replay onto a raster surface
//	err := r.Playback(imageSurface)
package recording

import (
	"image"
	"image/color"

	"github.com/gogpu/label/geom"
)

// CommandType identifies the type of a command.
type CommandType uint8

const (
	CmdClear    CommandType = iota // Clear the surface
	CmdFillRect                    // Fill a rectangle
	CmdFillPath                    // Fill a path
	CmdDrawMask                    // Composite a color through a mask
	CmdDrawImage                   // Draw an image
)

// commandTypeNames maps CommandType values to their string representation.
var commandTypeNames = [...]string{
	CmdClear:     "Clear",
	CmdFillRect:  "FillRect",
	CmdFillPath:  "FillPath",
	CmdDrawMask:  "DrawMask",
	CmdDrawImage: "DrawImage",
}

// String returns the string representation of a CommandType.
func (c CommandType) String() string {
	if int(c) < len(commandTypeNames) {
		return commandTypeNames[c]
	}
	return "Unknown"
}

// Command is the interface implemented by all command types.
type Command interface {
	// Type returns the CommandType for this command.
	Type() CommandType
}

// PathRef is a reference to a path in the resource pool.
type PathRef uint32

// ImageRef is a reference to an image in the resource pool.
type ImageRef uint32

// MaskRef is a reference to an alpha mask in the resource pool.
type MaskRef uint32

// ClearCommand fills the whole surface with a color.
type ClearCommand struct {
	Color color.RGBA
}

// Type implements Command.
func (ClearCommand) Type() CommandType { return CmdClear }

// FillRectCommand fills a user-space rectangle.
type FillRectCommand struct {
	Rect  geom.Rect
	Color color.RGBA
}

// Type implements Command.
func (FillRectCommand) Type() CommandType { return CmdFillRect }

// FillPathCommand fills a user-space path.
type FillPathCommand struct {
	Path  PathRef
	Color color.RGBA
}

// Type implements Command.
func (FillPathCommand) Type() CommandType { return CmdFillPath }

// DrawMaskCommand composites a color through an alpha mask placed in
// device pixels of the recording's scale.
type DrawMaskCommand struct {
	Mask  MaskRef
	At    image.Point
	Color color.RGBA
}

// Type implements Command.
func (DrawMaskCommand) Type() CommandType { return CmdDrawMask }

// DrawImageCommand draws an image at a device position.
type DrawImageCommand struct {
	Image ImageRef
	At    image.Point
	Alpha float64
}

// Type implements Command.
func (DrawImageCommand) Type() CommandType { return CmdDrawImage }
