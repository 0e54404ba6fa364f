package ipc

import (
	"bufio"
	"encoding/json"
	"net"
	"time"

	"github.com/cockroachdb/errors"
)

// Client queries a running session's status socket
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the socket at socketPath
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, errors.Wrap(err, "connect to awm (is it running?)")
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	if _, err := conn.Write(append(reqData, '\n')); err != nil {
		return nil, errors.Wrap(err, "send request")
	}

	respData, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, errors.Wrap(err, "parse response")
	}

	if resp.Status == "ERROR" {
		return nil, errors.Newf("awm error: %s", resp.Error)
	}

	return &resp, nil
}

func request[T any](c *Client, cmd CommandType) (*T, error) {
	resp, err := c.sendRequest(&Request{Command: cmd})
	if err != nil {
		return nil, err
	}
	var data T
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, errors.Wrapf(err, "parse %s data", cmd)
	}
	return &data, nil
}

// GetStatus retrieves the session summary
func (c *Client) GetStatus() (*StatusData, error) {
	return request[StatusData](c, CommandGetStatus)
}

// GetClients retrieves the managed clients
func (c *Client) GetClients() (*ClientsData, error) {
	return request[ClientsData](c, CommandGetClients)
}

// GetMonitors retrieves monitor information
func (c *Client) GetMonitors() (*MonitorsData, error) {
	return request[MonitorsData](c, CommandGetMonitors)
}

// Ping checks if the session is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
