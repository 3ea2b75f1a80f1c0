package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"strconv"
	"time"

	"github.com/melody-ding/go-vidcrop/internal/types"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName  = "vidcrop.detector.v1.Detector"
	methodHealth = "/" + serviceName + "/Health"
	methodLoad   = "/" + serviceName + "/Load"
	methodDetect = "/" + serviceName + "/Detect"

	maxMessageSize = 50 * 1024 * 1024
)

// Options configures the connection to a model server
type Options struct {
	Addr      string
	ModelPath string
	// Timeout bounds each call, 5s when zero
	Timeout time.Duration
	// Quality is the JPEG quality of frames sent to the server, 95 when zero
	Quality int
}

// GRPCClient sends frames to a model server over gRPC.
// Requests and responses are google.protobuf.Struct values.
type GRPCClient struct {
	conn   *grpc.ClientConn
	opts   Options
	names  map[int]string
	logger *zap.Logger
}

var _ Detector = (*GRPCClient)(nil)

// Dial connects to the model server, checks its health and loads opts.ModelPath.
// Extra dial options are appended to the defaults.
func Dial(ctx context.Context, opts Options, logger *zap.Logger, extra ...grpc.DialOption) (*GRPCClient, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Quality <= 0 {
		opts.Quality = 95
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMessageSize),
			grpc.MaxCallSendMsgSize(maxMessageSize),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	}, extra...)

	conn, err := grpc.NewClient(opts.Addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("could not connect to model server at %s: %w", opts.Addr, err)
	}

	c := &GRPCClient{conn: conn, opts: opts, logger: logger}
	if err := c.Health(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if err := c.load(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Health asks the server whether it is serving
func (c *GRPCClient) Health(ctx context.Context) error {
	resp := &structpb.Struct{}
	if err := c.invoke(ctx, methodHealth, &structpb.Struct{}, resp); err != nil {
		return fmt.Errorf("model server health check failed: %w", err)
	}
	if status := resp.GetFields()["status"].GetStringValue(); status != "serving" {
		return fmt.Errorf("model server is not serving: status %q", status)
	}
	return nil
}

func (c *GRPCClient) load(ctx context.Context) error {
	req, err := structpb.NewStruct(map[string]any{"model_path": c.opts.ModelPath})
	if err != nil {
		return fmt.Errorf("could not build load request: %w", err)
	}
	resp := &structpb.Struct{}
	if err := c.invoke(ctx, methodLoad, req, resp); err != nil {
		return fmt.Errorf("could not load model %s: %w", c.opts.ModelPath, err)
	}

	c.names = make(map[int]string)
	for k, v := range resp.GetFields()["names"].GetStructValue().GetFields() {
		id, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("invalid class id %q in model names", k)
		}
		c.names[id] = v.GetStringValue()
	}

	c.logger.Info("model loaded",
		zap.String("model", c.opts.ModelPath),
		zap.Int("classes", len(c.names)),
	)
	return nil
}

// Detect encodes frame as JPEG and runs it through the loaded model
func (c *GRPCClient) Detect(ctx context.Context, frame image.Image) ([]types.Detection, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: c.opts.Quality}); err != nil {
		return nil, fmt.Errorf("could not encode frame: %w", err)
	}

	b := frame.Bounds()
	req, err := structpb.NewStruct(map[string]any{
		"model_path": c.opts.ModelPath,
		"image":      base64.StdEncoding.EncodeToString(buf.Bytes()),
		"width":      b.Dx(),
		"height":     b.Dy(),
	})
	if err != nil {
		return nil, fmt.Errorf("could not build detect request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.invoke(ctx, methodDetect, req, resp); err != nil {
		return nil, fmt.Errorf("could not detect objects: %w", err)
	}
	return parseDetections(resp)
}

func parseDetections(resp *structpb.Struct) ([]types.Detection, error) {
	values := resp.GetFields()["detections"].GetListValue().GetValues()
	dets := make([]types.Detection, 0, len(values))
	for i, v := range values {
		fields := v.GetStructValue().GetFields()
		box := fields["box"].GetListValue().GetValues()
		if len(box) != 4 {
			return nil, fmt.Errorf("detection %d: box has %d coordinates, want 4", i, len(box))
		}
		dets = append(dets, types.Detection{
			ClassID:    int(fields["class_id"].GetNumberValue()),
			Confidence: float32(fields["confidence"].GetNumberValue()),
			Box: image.Rect(
				int(box[0].GetNumberValue()),
				int(box[1].GetNumberValue()),
				int(box[2].GetNumberValue()),
				int(box[3].GetNumberValue()),
			),
		})
	}
	return dets, nil
}

// Label returns the class name, or the id itself when the model does not name it
func (c *GRPCClient) Label(classID int) string {
	if name, ok := c.names[classID]; ok {
		return name
	}
	return strconv.Itoa(classID)
}

// Close closes the connection
func (c *GRPCClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *GRPCClient) invoke(ctx context.Context, method string, req, resp *structpb.Struct) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	return c.conn.Invoke(ctx, method, req, resp)
}
