//go:build !tinygo && cgo

package matgraphaux

import (
	"fmt"
	"image"
	"image/draw"
	"time"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/soypat/matgraph/glbuild"
	"github.com/soypat/matgraph/gleval"
)

func ui(g *glbuild.Graph, out glbuild.NodeID, cfg UIConfig) error {
	window, term, err := startGLFW(cfg.Width, cfg.Height)
	if err != nil {
		return err
	}
	defer term()

	backend := new(gleval.GLBackend)
	tmpl := cfg.Material.NewTemplate("preview", cfg.Logger)
	tmpl.Backend = backend
	err = tmpl.Compile(g, glbuild.AllStages(out)...)
	if err != nil {
		return err
	}
	if err = Diagnostics(tmpl); err != nil && cfg.Logger != nil {
		cfg.Logger.Warn("material compiled with diagnostics", "err", err)
	}
	prog, err := gleval.CompileTemplate(tmpl)
	if err != nil {
		return err
	}
	defer prog.Delete()
	prog.Bind()

	// Full screen quad: position xyz followed by texture coordinates uv.
	vertices := []float32{
		-1, -1, 0, 0, 0,
		1, -1, 0, 1, 0,
		-1, 1, 0, 0, 1,
		-1, 1, 0, 0, 1,
		1, -1, 0, 1, 0,
		1, 1, 0, 1, 1,
	}
	const stride = 5 * 4
	var vao, vbo uint32
	gl.GenVertexArrays(1, &vao)
	gl.BindVertexArray(vao)
	gl.GenBuffers(1, &vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	gl.BufferData(gl.ARRAY_BUFFER, 4*len(vertices), gl.Ptr(vertices), gl.STATIC_DRAW)
	// Attributes unused by the material are optimized out and have no location.
	if posAttrib, err := prog.AttribLocation("a_position"); err == nil {
		gl.EnableVertexAttribArray(posAttrib)
		gl.VertexAttribPointer(posAttrib, 3, gl.FLOAT, false, stride, gl.PtrOffset(0))
	}
	if uvAttrib, err := prog.AttribLocation(glbuild.AttribTexCoord); err == nil {
		gl.EnableVertexAttribArray(uvAttrib)
		gl.VertexAttribPointer(uvAttrib, 2, gl.FLOAT, false, stride, gl.PtrOffset(3*4))
	}
	for unit, img := range cfg.Textures {
		err = uploadTexture(unit, img)
		if err != nil {
			return err
		}
	}

	timeUniform := tmpl.Uniforms.Find(glbuild.UniformTime)
	start := time.Now()
	ctx := cfg.Context
	for !window.ShouldClose() {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		width, height := window.GetFramebufferSize()
		gl.Viewport(0, 0, int32(width), int32(height))
		gl.ClearColor(0.0, 0.0, 0.0, 1.0)
		gl.Clear(gl.COLOR_BUFFER_BIT)
		if timeUniform != nil && timeUniform.Handle != glbuild.InvalidHandle {
			timeUniform.SetValue(float32(time.Since(start).Seconds()))
			err = backend.BindUniformValue(timeUniform.Handle, timeUniform.Value)
			if err != nil {
				return err
			}
			prog.Bind()
		}
		gl.BindVertexArray(vao)
		gl.DrawArrays(gl.TRIANGLES, 0, 6)
		window.SwapBuffers()
		glfw.PollEvents()
		time.Sleep(time.Second / 60)
	}
	return nil
}

// uploadTexture uploads img to texture unit. Rows are flipped so that
// UV (0,0) samples the bottom left corner of the image like the CPU evaluator.
func uploadTexture(unit int, img image.Image) error {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	flipped := make([]uint8, 0, len(rgba.Pix))
	for y := rgba.Rect.Dy() - 1; y >= 0; y-- {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+4*rgba.Rect.Dx()]
		flipped = append(flipped, row...)
	}
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(b.Dx()), int32(b.Dy()), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(flipped))
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("uploading texture unit %d: GL error 0x%x", unit, code)
	}
	return nil
}

func startGLFW(width, height int) (window *glfw.Window, term func(), err error) {
	if err := glfw.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	window, err = glfw.CreateWindow(width, height, "matgraph material preview", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("failed to create GLFW window: %w", err)
	}
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	return window, glfw.Terminate, nil
}
