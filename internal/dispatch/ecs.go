package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

// ecsAPI is the slice of the ECS client used here; the real *ecs.Client
// satisfies it.
type ecsAPI interface {
	RunTask(ctx context.Context, params *ecs.RunTaskInput, optFns ...func(*ecs.Options)) (*ecs.RunTaskOutput, error)
}

// ECSOptions identifies the Fargate task to run and the network it joins.
type ECSOptions struct {
	ClusterARN        string
	TaskDefinitionARN string
	ContainerName     string
	SubnetID          string
	SecurityGroupID   string
	AssignPublicIP    bool
}

// ECSDispatcher launches the archival worker as a one-off Fargate task,
// passing batch parameters through container environment overrides.
type ECSDispatcher struct {
	client ecsAPI
	opts   ECSOptions
}

func NewECSDispatcher(client *ecs.Client, opts ECSOptions) *ECSDispatcher {
	return &ECSDispatcher{client: client, opts: opts}
}

func (d *ECSDispatcher) Launch(ctx context.Context, task Task) error {
	input, err := d.buildRunTaskInput(task)
	if err != nil {
		return err
	}

	out, err := d.client.RunTask(ctx, input)
	if err != nil {
		return fmt.Errorf("run task for batch %d: %w", task.BatchID, err)
	}
	if len(out.Failures) > 0 {
		f := out.Failures[0]
		return fmt.Errorf("run task for batch %d: %s: %s",
			task.BatchID, aws.ToString(f.Reason), aws.ToString(f.Detail))
	}
	return nil
}

func (d *ECSDispatcher) buildRunTaskInput(task Task) (*ecs.RunTaskInput, error) {
	fileList, err := json.Marshal(task.Files)
	if err != nil {
		return nil, fmt.Errorf("marshal file list: %w", err)
	}

	assignIP := types.AssignPublicIpDisabled
	if d.opts.AssignPublicIP {
		assignIP = types.AssignPublicIpEnabled
	}

	env := []types.KeyValuePair{
		{Name: aws.String("BATCH_ID"), Value: aws.String(strconv.FormatInt(task.BatchID, 10))},
		{Name: aws.String("FILE_LIST"), Value: aws.String(string(fileList))},
		{Name: aws.String("TOTAL_SIZE_BYTES"), Value: aws.String(strconv.FormatInt(task.TotalSizeBytes, 10))},
		{Name: aws.String("CALLBACK_URL"), Value: aws.String(task.CallbackURL)},
		{Name: aws.String("WEBHOOK_SECRET"), Value: aws.String(task.WebhookSecret)},
	}

	return &ecs.RunTaskInput{
		Cluster:        aws.String(d.opts.ClusterARN),
		TaskDefinition: aws.String(d.opts.TaskDefinitionARN),
		LaunchType:     types.LaunchTypeFargate,
		Count:          aws.Int32(1),
		NetworkConfiguration: &types.NetworkConfiguration{
			AwsvpcConfiguration: &types.AwsVpcConfiguration{
				Subnets:        []string{d.opts.SubnetID},
				SecurityGroups: []string{d.opts.SecurityGroupID},
				AssignPublicIp: assignIP,
			},
		},
		Overrides: &types.TaskOverride{
			ContainerOverrides: []types.ContainerOverride{
				{
					Name:        aws.String(d.opts.ContainerName),
					Environment: env,
				},
			},
		},
	}, nil
}
