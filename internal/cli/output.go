package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/bytedance/sonic"

	"github.com/shaiso/Conduit/internal/domain"
)

// Output — вывод команд: данные в w, сообщения в errW.
type Output struct {
	jsonMode bool
	w        io.Writer
	errW     io.Writer
}

// NewOutput создаёт Output для stdout и stderr.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        os.Stdout,
		errW:     os.Stderr,
	}
}

// Print выводит таблицу или, в режиме --json, jsonData.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит колонки, выровненные пробелами, с подчёркнутым заголовком.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	underline := make([]string, len(headers))
	for i, h := range headers {
		underline[i] = strings.Repeat("-", len(h))
	}

	for _, row := range append([][]string{headers, underline}, rows...) {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// JSON выводит v с отступами.
func (o *Output) JSON(v any) {
	enc := sonic.ConfigStd.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		o.Error(err.Error())
	}
}

// Text выводит текст как есть.
func (o *Output) Text(s string) {
	fmt.Fprint(o.w, s)
}

// Flows выводит список flows.
func (o *Output) Flows(flows []FlowResponse) {
	rows := make([][]string, len(flows))
	for i, f := range flows {
		rows[i] = []string{f.ID, f.Name, f.App, f.Path, strconv.Itoa(len(f.Stages))}
	}
	o.Print([]string{"ID", "NAME", "APP", "PATH", "STAGES"}, rows, flows)
}

// Flow выводит стадии flow и порядок обхода.
func (o *Output) Flow(flow *FlowResponse) {
	if o.jsonMode {
		o.JSON(flow)
		return
	}

	rows := make([][]string, len(flow.Stages))
	for i, s := range flow.Stages {
		rows[i] = []string{s.ID, s.Type, s.Handler}
	}
	o.Table([]string{"STAGE", "TYPE", "HANDLER"}, rows)
	o.Text("\n" + flow.Plan)
}

// Result выводит ответ flow: код в stderr, тело в stdout.
func (o *Output) Result(res *InvokeResult) {
	o.Success(fmt.Sprintf("HTTP %d", res.StatusCode))

	switch b := res.Body.(type) {
	case nil:
	case string:
		o.Text(b + "\n")
	default:
		o.JSON(b)
	}
}

// Event выводит событие взаимодействия одной строкой.
func (o *Output) Event(task domain.InteractionTask) {
	if o.jsonMode {
		o.JSON(task)
		return
	}
	fmt.Fprintf(o.w, "%-8s %s/%s interaction=%s txn=%s\n",
		task.Status, task.App, task.FlowID, task.InteractionID, task.TxnID)
}

// Success выводит сообщение в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}
