// Package imaging 生成缩略图并提取 EXIF 元数据.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	dimg "github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/yeisme/photovault/pkg/configs"
)

// Thumbnail 渲染结果；Width 与 Height 为原图尺寸.
type Thumbnail struct {
	Data        []byte
	ContentType string
	Ext         string
	Width       int
	Height      int
	ThumbWidth  int
	ThumbHeight int
}

// Renderer 按固定边界等比缩放.
type Renderer struct {
	width   int
	height  int
	quality int
}

// NewRenderer 创建渲染器.
func NewRenderer(cfg configs.ThumbnailConfig) *Renderer {
	return &Renderer{width: cfg.Width, height: cfg.Height, quality: cfg.Quality}
}

// Render 解码原图，按 EXIF 方向摆正后缩放到边界内.
// PNG 与 GIF 输出 PNG 以保留透明度，其余输出 JPEG.
func (r *Renderer) Render(src io.Reader) (*Thumbnail, error) {
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read original: %w", err)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unsupported image: %w", err)
	}

	img, err := dimg.Decode(bytes.NewReader(raw), dimg.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}

	bounds := img.Bounds()
	thumb := dimg.Fit(img, r.width, r.height, dimg.Lanczos)

	out := &Thumbnail{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		ThumbWidth:  thumb.Bounds().Dx(),
		ThumbHeight: thumb.Bounds().Dy(),
	}

	var buf bytes.Buffer

	switch format {
	case "png", "gif":
		out.ContentType, out.Ext = "image/png", ".png"
		err = dimg.Encode(&buf, thumb, dimg.PNG)
	default:
		out.ContentType, out.Ext = "image/jpeg", ".jpg"
		err = dimg.Encode(&buf, thumb, dimg.JPEG, dimg.JPEGQuality(r.quality))
	}

	if err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}

	out.Data = buf.Bytes()

	return out, nil
}
