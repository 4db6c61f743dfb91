package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"orderledger/domain/ledger"
)

// Client calls ledger.v1.LedgerService with the json codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial opens a plaintext connection to addr.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	return grpc.NewClient(addr, opts...)
}

func (c *Client) SubmitOrder(ctx context.Context, side ledger.Side, amount, price float64) (uint64, error) {
	out := new(SubmitOrderResponse)
	err := c.invoke(ctx, "SubmitOrder", &SubmitOrderRequest{
		Side:   side.String(),
		Amount: amount,
		Price:  price,
	}, out)
	return out.ID, err
}

func (c *Client) Render(ctx context.Context) (string, error) {
	out := new(RenderResponse)
	err := c.invoke(ctx, "Render", &RenderRequest{}, out)
	return out.Report, err
}

func (c *Client) GetSnapshot(ctx context.Context) (ledger.Snapshot, error) {
	out := new(GetSnapshotResponse)
	err := c.invoke(ctx, "GetSnapshot", &GetSnapshotRequest{}, out)
	return out.Snapshot, err
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, grpc.CallContentSubtype(codecName))
}
