package service

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"ProjectHub/logger"
	"ProjectHub/module/chat/model"
	"ProjectHub/tools/errs"
	"ProjectHub/tools/ids"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const (
	uploadSubdir = "chat"
	DownloadPath = "/api/v1/simple-chat/download/"
	sniffLen     = 3072
)

var allowedTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"application/pdf",
	"text/plain",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// detectType 按内容识别；沿父类型往上找白名单
func detectType(head []byte, declared string) (string, bool) {
	m := mimetype.Detect(head)
	for t := m; t != nil; t = t.Parent() {
		for _, a := range allowedTypes {
			if t.Is(a) {
				return a, true
			}
		}
	}
	// 老 .doc 只能识别到 OLE 容器
	if m.Is("application/x-ole-storage") && declared == "application/msword" {
		return declared, true
	}
	return m.String(), false
}

func (s *Service) dir() string {
	return filepath.Join(s.uploadDir, uploadSubdir)
}

// Upload 校验大小和类型后存到 upload.dir/chat/<uuid><ext>
func (s *Service) Upload(fh *multipart.FileHeader) (*model.FileInfo, error) {
	if fh == nil {
		return nil, errs.ErrArgs.WrapMsg("file required")
	}
	if fh.Size > s.maxUpload {
		return nil, errs.ErrFileTooLarge.WrapMsg("file too large", "size", fh.Size, "max", s.maxUpload)
	}
	src, err := fh.Open()
	if err != nil {
		return nil, errs.WrapMsg(err, "open upload")
	}
	defer src.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, errs.WrapMsg(err, "read upload")
	}
	head = head[:n]
	ftype, ok := detectType(head, fh.Header.Get("Content-Type"))
	if !ok {
		return nil, errs.ErrFileType.WrapMsg("file type not allowed", "type", ftype)
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext == "" {
		if m := mimetype.Lookup(ftype); m != nil {
			ext = m.Extension()
		}
	}
	name := ids.UUID() + ext
	if err := os.MkdirAll(s.dir(), 0o755); err != nil {
		return nil, errs.WrapMsg(err, "create upload dir")
	}
	dst, err := os.Create(filepath.Join(s.dir(), name))
	if err != nil {
		return nil, errs.WrapMsg(err, "create upload file")
	}
	defer dst.Close()

	// 再限一次，防止 Size 和实际内容不符
	written, err := io.Copy(dst, io.LimitReader(io.MultiReader(bytes.NewReader(head), src), s.maxUpload+1))
	if err != nil {
		_ = os.Remove(dst.Name())
		return nil, errs.WrapMsg(err, "write upload")
	}
	if written > s.maxUpload {
		_ = os.Remove(dst.Name())
		return nil, errs.ErrFileTooLarge.WrapMsg("file too large", "max", s.maxUpload)
	}

	logger.Info("[Chat] file uploaded", zap.String("name", name), zap.String("type", ftype), zap.Int64("size", written))
	return &model.FileInfo{
		FileURL:  DownloadPath + name,
		FileName: fh.Filename,
		FileType: ftype,
		Size:     written,
	}, nil
}

// Download 返回文件路径和 content type；只接受纯文件名
func (s *Service) Download(filename string) (string, string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.Contains(filename, "..") ||
		strings.ContainsAny(filename, `/\`) {
		return "", "", errs.ErrArgs.WrapMsg("invalid filename")
	}
	path := filepath.Join(s.dir(), filename)
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return "", "", errs.ErrRecordNotFound.WrapMsg("file not found", "file", filename)
	}
	ct := mime.TypeByExtension(filepath.Ext(filename))
	if ct == "" {
		if m, err := mimetype.DetectFile(path); err == nil {
			ct = m.String()
		} else {
			ct = "application/octet-stream"
		}
	}
	return path, ct, nil
}
