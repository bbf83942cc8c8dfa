// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package surface provides the drawing targets text is rendered into.
//
// A Surface is either a raster surface (ImageSurface), which owns pixels
// at a fixed device scale, or a vector surface (see package recording),
// which records resolution-independent commands.
//
// # Coordinate spaces
//
// Fills (FillRect, FillPath) take user-space coordinates in points. A
// raster surface maps a user point p to the device pixel
// p*Scale() - Origin(), where Origin is the integer device position of the
// surface's top-left pixel in the global device space. Masks and images
// (DrawMask, DrawImage) are positioned in global device pixels.
//
// Two surfaces with the same scale and different integer origins therefore
// produce identical pixels for the same drawing, which is what lets a tile
// and a full-size image of the same text agree pixel for pixel.
//
// # Usage
//
//	s := surface.NewImageSurface(800, 600)
//	defer s.Close()
//
//	s.Clear(color.White)
//	s.FillRect(geom.R(10, 10, 100, 20), color.RGBA{255, 0, 0, 255})
//
//	path := surface.NewPath()
//	path.Circle(400, 300, 100)
//	s.FillPath(path, color.Black)
//
//	img := s.Snapshot()
package surface
