package catalog

import "github.com/studiowebux/execbench/internal/types"

// FibExpected is fib(20), printed by every built-in program
const FibExpected = "6765"

// Default returns the built-in catalog: iterative fib(20) in four languages
func Default() *Catalog {
	return New(
		types.TestCase{
			Language: "python",
			Code: `
def fib(n):
    a, b = 0, 1
    for _ in range(n):
        a, b = b, a + b
    return a

print(fib(20))  # Should print 6765
`,
			Expected: FibExpected,
		},
		types.TestCase{
			Language: "javascript",
			Code: `
function fib(n){ let a=0,b=1; for(let i=0;i<n;i++){ [a,b] = [b,a+b]; } return a; }
console.log(fib(20)); // Should print 6765
`,
			Expected: FibExpected,
		},
		types.TestCase{
			Language: "java",
			Code: `
public class Main {
    public static void main(String[] args) {
        System.out.println(fib(20));
    }
    static int fib(int n) {
        int a = 0, b = 1;
        for(int i = 0; i < n; i++) {
            int tmp = a;
            a = b;
            b = tmp + b;
        }
        return a;
    }
}
`,
			Expected: FibExpected,
		},
		types.TestCase{
			Language: "cpp",
			Code: `
#include <iostream>
using namespace std;

int fib(int n) {
    int a = 0, b = 1;
    for(int i = 0; i < n; i++) {
        int tmp = a;
        a = b;
        b = tmp + b;
    }
    return a;
}

int main() {
    cout << fib(20) << endl;
    return 0;
}
`,
			Expected: FibExpected,
		},
	)
}
