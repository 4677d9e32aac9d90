package dataProcess

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"nncli/pkg/network"

	"gonum.org/v1/gonum/mat"
)

/*
Training sets are text files with one instance per line: the input values
followed by the desired output values, separated by commas and/or spaces.

	0.53, 0.012, 0.99, 0, 1

Blank lines and lines starting with '#' are skipped.
*/

// ParseError reports a malformed line of a training set.
type ParseError struct {
	Path string
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	where := fmt.Sprintf("line %d", e.Line)
	if e.Path != "" {
		where = e.Path + ":" + strconv.Itoa(e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", where, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", where, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// LoadDataset reads the training set at path for a network with inputSize
// input and outputSize output neurons.
func LoadDataset(path string, inputSize, outputSize int) ([]network.Instance, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	data, err := ParseDataset(file, inputSize, outputSize)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return data, nil
}

// ParseDataset reads instances from r, one per line.
func ParseDataset(r io.Reader, inputSize, outputSize int) ([]network.Instance, error) {
	if inputSize <= 0 || outputSize <= 0 {
		return nil, fmt.Errorf("dataset: invalid instance shape %d+%d", inputSize, outputSize)
	}
	var data []network.Instance
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(fields) != inputSize+outputSize {
			return nil, &ParseError{
				Line: lineNo,
				Msg:  fmt.Sprintf("got %d values, want %d inputs and %d outputs", len(fields), inputSize, outputSize),
			}
		}
		values := make([]float64, len(fields))
		for i, f := range fields {
			v, err := parseFinite(f)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("value %d", i+1), Err: err}
			}
			values[i] = v
		}
		data = append(data, network.Instance{
			Input:  mat.NewVecDense(inputSize, values[:inputSize]),
			Output: mat.NewVecDense(outputSize, values[inputSize:]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return data, nil
}
